package main

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/facet"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestParseCommand(t *testing.T) {
	out := run(t, "parse", "_sfq=color:'red'&_sfq=color:'blue'&_sfq=broken&_sfq=size:'M'")

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string][]string{"color": {"red", "blue"}, "size": {"M"}}, got)
}

func TestToggleCommandResetsPage(t *testing.T) {
	out := run(t, "toggle", "_sfq=color:'red'&_sfq=size:'M'&page=2", "--facet", "color", "--value", "red", "--checked=false")

	location := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(location, "/search?"), location)
	q, err := url.ParseQuery(strings.TrimPrefix(location, "/search?"))
	require.NoError(t, err)
	assert.Equal(t, []string{"size:'M'"}, q["_sfq"])
	assert.Equal(t, "1", q.Get("page"))
}

func TestStateCommandKeepsSelectedFacetOpen(t *testing.T) {
	dir := t.TempDir()
	facetsPath := filepath.Join(dir, "facets.json")
	require.NoError(t, os.WriteFile(facetsPath, []byte(`[{"name":"size","type":"terms","values":[{"key":"M","name":"M","count":3}]}]`), 0o600))

	out := run(t, "state", "_sfq=color:'red'", "--facets", facetsPath)

	var state facet.State
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	require.Contains(t, state, "color")
	assert.True(t, state["color"].Open)
	assert.True(t, state["color"].Values["red"])
	assert.Contains(t, state, "size")
}

func TestToggleCommandRequiresFacet(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"toggle", "page=1"})
	assert.Error(t, cmd.Execute())
}
