package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phpFixture = `<?php
function greet($name) {
    $greeting = "hello " . $name;
    return $greeting;
}
`

func TestRegistryAnalyzePHP(t *testing.T) {
	r := NewRegistry()

	analysis, err := r.Analyze("file:///var/www/index.php", []byte(phpFixture))
	require.NoError(t, err)
	require.NotNil(t, analysis)

	var names []string
	for _, line := range analysis.Lines() {
		for _, ref := range analysis.References(line) {
			names = append(names, ref.Name)
		}
	}
	assert.Contains(t, names, "$name")
	assert.Contains(t, names, "$greeting")
}

func TestRegistryAnalyzeUnregisteredExtension(t *testing.T) {
	r := NewRegistry()

	_, err := r.Analyze("file:///var/www/index.rb", []byte("puts 1"))
	require.Error(t, err)
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
}

func TestAnalysisReferencesNilSafety(t *testing.T) {
	var a *Analysis
	assert.Nil(t, a.References(0))
	assert.Nil(t, a.Lines())
}
