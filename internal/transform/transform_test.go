package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/errors"
)

func TestHasAcquisition(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"const React = require('react');", true},
		{`  let React = require( "react" );`, true},
		{"var React=require('react')", true},
		{"import React from 'react';", true},
		{"import * as React from 'react';", true},
		{"const Preact = require('preact');", false},
		{"// const React = require('react')", false},
		{"const x = 1;", false},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, HasAcquisition(tt.source))
		})
	}
}

func TestCompileInjectsAcquisition(t *testing.T) {
	c, err := New().Compile(context.Background(), "hello", "module.exports = () => <p>hi</p>;")
	require.NoError(t, err)

	assert.True(t, c.InjectedAcquisition)
	assert.Equal(t, "hello.jsx", c.DiagnosticName)
	assert.Contains(t, c.Script, AcquisitionStatement)
	assert.Contains(t, c.Script, `React.createElement("p", null, "hi")`)
}

func TestCompileKeepsExistingAcquisition(t *testing.T) {
	src := "const React = require('react');\nmodule.exports = () => <p>hi</p>;\n"
	c, err := New().Compile(context.Background(), "hello", src)
	require.NoError(t, err)

	assert.False(t, c.InjectedAcquisition)
	// esbuild normalizes quotes, so the kept statement and an injected one
	// would print the same; count instead
	assert.Equal(t, 1, strings.Count(c.Script, `require("react")`))
}

func TestCompileFragmentsSpreadAndNamespaces(t *testing.T) {
	src := `const React = require('react');
module.exports = (props) => (
  <>
    <div {...props} className="a" />
    <svg:rect width="4" />
  </>
);
`
	c, err := New().Compile(context.Background(), "shapes", src)
	require.NoError(t, err)

	assert.Contains(t, c.Script, "React.Fragment")
	assert.Contains(t, c.Script, `"svg:rect"`)
	assert.Contains(t, c.Script, "props")
	assert.NotContains(t, c.Script, "<div")
}

func TestCompileMalformedMarkup(t *testing.T) {
	_, err := New().Compile(context.Background(), "broken", "module.exports = () => <div><span></div>;")
	require.Error(t, err)

	assert.Equal(t, errors.ErrorTypeCompile, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "broken.jsx")
}

func TestCompileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Compile(ctx, "x", "const a = 1;")
	assert.Equal(t, errors.ErrorTypeCompile, errors.TypeOf(err))
}
