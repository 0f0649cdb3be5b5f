package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "analytics", "terms", "classify", "loadtest"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestTermsCmd(t *testing.T) {
	out, err := run(t, "terms", `t="the Lord" is my shepherd in (KJV)`)
	require.NoError(t, err)
	assert.Equal(t, "the Lord\nis\nmy\nshepherd\n", out)
}

func TestTermsCmd_JSON(t *testing.T) {
	out, err := run(t, "terms", "--json", "t=love AND joy in (ESV)")
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"love", "joy"}, got)
}

func TestTermsCmd_RequiresQuery(t *testing.T) {
	_, err := run(t, "terms")
	assert.Error(t, err)
}

func TestClassifyCmd(t *testing.T) {
	out, err := run(t, "classify", "s=grace faith in (ESV)")
	require.NoError(t, err)
	assert.Contains(t, out, "type:      subject")
	assert.Contains(t, out, "query:     heading:grace AND heading:faith")
	assert.Contains(t, out, "versions:  ESV")
}

func TestClassifyCmd_JSON(t *testing.T) {
	out, err := run(t, "classify", "--json", "t=love in (KJV, ESV)")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "love", got["query"])
	assert.Equal(t, []any{"KJV", "ESV"}, got["versions"])
}

func TestClassifyCmd_RejectsMissingVersions(t *testing.T) {
	_, err := run(t, "classify", "t=love")
	assert.Error(t, err)
}
