package xml

import (
	"encoding/base64"
	"encoding/xml"
	"strconv"
	"strings"
)

// Decode parses a DBGp payload (the framer's unwrapped XML body) into
// either an *Init or a *Response. Any shape violation — a missing
// required attribute, an unparsable transaction id, an unrecognized
// root element — is reported as a *ProtocolError.
func Decode(payload string) (any, error) {
	dec := xml.NewDecoder(strings.NewReader(payload))

	tok, err := nextStart(dec)
	if err != nil {
		return nil, protocolErrorf("reading root element: %v", err)
	}

	attrs := attrMap(tok.Attr)

	switch tok.Name.Local {
	case "init":
		fileuri, ok := attrs["fileuri"]
		if !ok {
			return nil, protocolErrorf("init element missing required fileuri attribute")
		}
		return &Init{FileURI: fileuri}, nil
	case "response":
		return decodeResponse(dec, attrs)
	default:
		return nil, protocolErrorf("unrecognized root element %q", tok.Name.Local)
	}
}

// nextStart advances past any leading ProcInst/CharData to the first
// StartElement.
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

func decodeResponse(dec *xml.Decoder, attrs map[string]string) (*Response, error) {
	cmd, ok := attrs["command"]
	if !ok {
		return nil, protocolErrorf("response element missing required command attribute")
	}

	tidStr, ok := attrs["transaction_id"]
	if !ok {
		return nil, protocolErrorf("response element missing required transaction_id attribute")
	}
	tid, err := strconv.Atoi(tidStr)
	if err != nil {
		return nil, protocolErrorf("response transaction_id %q is not an integer", tidStr)
	}

	resp := &Response{TransactionID: tid, Command: cmd}

	switch cmd {
	case "step_into", "step_over", "step_out", "run":
		cont, err := parseContinuation(attrs)
		if err != nil {
			return nil, err
		}
		resp.Continuation = cont
	case "stack_get":
		sg, err := parseStackGet(dec)
		if err != nil {
			return nil, err
		}
		resp.StackGet = sg
	case "source":
		src, err := parseSource(dec)
		if err != nil {
			return nil, err
		}
		resp.Source = src
	case "context_get":
		cg, err := parseContextGet(dec)
		if err != nil {
			return nil, err
		}
		resp.ContextGet = cg
	case "eval":
		ev, err := parseEval(dec)
		if err != nil {
			return nil, err
		}
		resp.Eval = ev
	default:
		resp.Unknown = &Unknown{Command: cmd}
	}

	return resp, nil
}

func parseContinuation(attrs map[string]string) (*Continuation, error) {
	raw, ok := attrs["status"]
	if !ok {
		return nil, protocolErrorf("continuation response missing required status attribute")
	}
	c := &Continuation{Raw: raw, Reason: attrs["reason"]}
	switch raw {
	case "break":
		c.Status = StatusBreak
	case "stopping":
		c.Status = StatusStopping
	default:
		c.Status = StatusUnknown
	}
	return c, nil
}

// parseStackGet collects <stack> child elements in document order;
// index 0 is the innermost frame (spec §4.B).
func parseStackGet(dec *xml.Decoder) (*StackGet, error) {
	sg := &StackGet{}
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, protocolErrorf("reading stack_get body: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "stack" {
				a := attrMap(t.Attr)
				filename, ok := a["filename"]
				if !ok {
					return nil, protocolErrorf("stack element missing required filename attribute")
				}
				lineStr, ok := a["lineno"]
				if !ok {
					return nil, protocolErrorf("stack element missing required lineno attribute")
				}
				line, err := strconv.Atoi(lineStr)
				if err != nil {
					return nil, protocolErrorf("stack lineno %q is not an integer", lineStr)
				}
				levelStr := a["level"]
				level, _ := strconv.Atoi(levelStr)
				if levelStr == "" {
					level = len(sg.Entries)
				}
				sg.Entries = append(sg.Entries, StackEntry{Level: level, Filename: filename, Line: line})
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return sg, nil
			}
			depth--
		}
	}
}

// parseSource reads the CDATA child and base64-decodes it (spec §4.B:
// "the decoder returns the UTF-8 decoding").
func parseSource(dec *xml.Decoder) (*Source, error) {
	var raw strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, protocolErrorf("reading source body: %v", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			raw.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw.String()))
				if err != nil {
					return nil, protocolErrorf("source CDATA is not valid base64: %v", err)
				}
				return &Source{Text: string(decoded)}, nil
			}
			depth--
		}
	}
}

// parseContextGet walks the property tree with an explicit stack to
// bound recursion depth to the negotiated max_depth rather than the
// host call stack (spec §9).
func parseContextGet(dec *xml.Decoder) (*ContextGet, error) {
	top, err := walkProperties(dec)
	if err != nil {
		return nil, err
	}
	return &ContextGet{Properties: top}, nil
}

// walkProperties consumes tokens until the enclosing element's
// EndElement and returns the top-level <property> elements found,
// with nested <property> children attached recursively via the stack.
func walkProperties(dec *xml.Decoder) ([]Property, error) {
	type frame struct {
		prop  *Property
		value strings.Builder
	}

	var top []Property
	var stack []*frame

	appendChild := func(p Property) *Property {
		if len(stack) == 0 {
			top = append(top, p)
			return &top[len(top)-1]
		}
		parent := stack[len(stack)-1].prop
		parent.Children = append(parent.Children, p)
		return &parent.Children[len(parent.Children)-1]
	}

	finalize := func(fr *frame) error {
		if fr.prop.Encoding == "base64" {
			raw := strings.TrimSpace(fr.value.String())
			if raw != "" {
				decoded, err := base64.StdEncoding.DecodeString(raw)
				if err != nil {
					return protocolErrorf("property %q value is not valid base64: %v", fr.prop.Name, err)
				}
				fr.prop.Value = string(decoded)
			}
		} else {
			fr.prop.Value = fr.value.String()
		}
		return nil
	}

	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, protocolErrorf("reading property tree: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "property" {
				p, err := parsePropertyAttrs(t.Attr)
				if err != nil {
					return nil, err
				}
				ptr := appendChild(*p)
				stack = append(stack, &frame{prop: ptr})
			}
			depth++
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].value.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				return top, nil
			}
			depth--
			if t.Name.Local == "property" && len(stack) > 0 {
				fr := stack[len(stack)-1]
				if err := finalize(fr); err != nil {
					return nil, err
				}
				stack = stack[:len(stack)-1]
			}
		}
	}
}

func parsePropertyAttrs(attrs []xml.Attr) (*Property, error) {
	a := attrMap(attrs)
	p := &Property{
		Name:      a["name"],
		Fullname:  a["fullname"],
		Type:      ParsePropertyType(a["type"]),
		Classname: a["classname"],
		Facet:     a["facet"],
		Key:       a["key"],
		Address:   a["address"],
		Encoding:  a["encoding"],
	}
	var err error
	if p.Page, err = parseOptionalUint(a, "page"); err != nil {
		return nil, err
	}
	if p.PageSize, err = parseOptionalUint(a, "pagesize"); err != nil {
		return nil, err
	}
	if p.Size, err = parseOptionalUint(a, "size"); err != nil {
		return nil, err
	}
	return p, nil
}

func parseOptionalUint(attrs map[string]string, key string) (*uint64, error) {
	s, ok := attrs[key]
	if !ok || s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, protocolErrorf("property attribute %s=%q is not an unsigned integer", key, s)
	}
	return &v, nil
}

// parseEval reads either a property list (success) or a nested <error>
// element carrying {code, message}.
func parseEval(dec *xml.Decoder) (*Eval, error) {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, protocolErrorf("reading eval body: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "error":
				errVal, err := parseEvalError(dec, attrMap(t.Attr))
				if err != nil {
					return nil, err
				}
				if err := skipToEnd(dec); err != nil {
					return nil, err
				}
				return &Eval{Err: errVal}, nil
			case "property":
				p, err := parsePropertyAttrs(t.Attr)
				if err != nil {
					return nil, err
				}
				// Re-walk using the shared property-tree walker, starting
				// from this already-open <property> element: push it back
				// onto a synthetic single-root walk by delegating to
				// walkPropertiesFrom.
				props, err := walkPropertiesFrom(dec, *p)
				if err != nil {
					return nil, err
				}
				rest, err := walkProperties(dec)
				if err != nil {
					return nil, err
				}
				return &Eval{Properties: append(props, rest...)}, nil
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return &Eval{}, nil
			}
			depth--
		}
	}
}

// walkPropertiesFrom finalizes a single property whose StartElement was
// already consumed by the caller, then returns it as a one-element slice.
func walkPropertiesFrom(dec *xml.Decoder, p Property) ([]Property, error) {
	type frame struct {
		prop  *Property
		value strings.Builder
	}
	stack := []*frame{{prop: &p}}
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, protocolErrorf("reading property: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "property" {
				child, err := parsePropertyAttrs(t.Attr)
				if err != nil {
					return nil, err
				}
				parent := stack[len(stack)-1].prop
				parent.Children = append(parent.Children, *child)
				stack = append(stack, &frame{prop: &parent.Children[len(parent.Children)-1]})
			}
			depth++
		case xml.CharData:
			stack[len(stack)-1].value.Write(t)
		case xml.EndElement:
			depth--
			fr := stack[len(stack)-1]
			if fr.prop.Encoding == "base64" {
				raw := strings.TrimSpace(fr.value.String())
				if raw != "" {
					decoded, err := base64.StdEncoding.DecodeString(raw)
					if err != nil {
						return nil, protocolErrorf("property %q value is not valid base64: %v", fr.prop.Name, err)
					}
					fr.prop.Value = string(decoded)
				}
			} else {
				fr.prop.Value = fr.value.String()
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return []Property{p}, nil
			}
		}
	}
}

func parseEvalError(dec *xml.Decoder, attrs map[string]string) (*EvalError, error) {
	codeStr := attrs["code"]
	code, _ := strconv.Atoi(codeStr)
	ev := &EvalError{Code: code}
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, protocolErrorf("reading eval error body: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "message" {
				msg, err := readCharDataUntilEnd(dec)
				if err != nil {
					return nil, err
				}
				ev.Message = msg
			} else {
				depth++
			}
		case xml.EndElement:
			if depth == 0 {
				return ev, nil
			}
			depth--
		}
	}
}

func readCharDataUntilEnd(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", protocolErrorf("reading character data: %v", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			return b.String(), nil
		}
	}
}

// skipToEnd drains remaining tokens until the enclosing element closes.
func skipToEnd(dec *xml.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return protocolErrorf("draining element: %v", err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}
