package version

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUAComment(t *testing.T) {
	oldVersion, oldDescribe := Version, GitDescribe
	t.Cleanup(func() { Version, GitDescribe = oldVersion, oldDescribe })

	Version = "1.2.3"
	GitDescribe = "v1.2.3-4-gabc def"

	assert.Equal(t, "wagsup-1.2.3-v1.2.3-4-gabc_def", UAComment())
}

func TestVersionCmdJSON(t *testing.T) {
	cmd := NewCmd("wagsupd")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--json"})

	require.NoError(t, cmd.Execute())

	var info Info
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, "wagsupd", info.Name)
	assert.Equal(t, Version, info.Version)
	assert.True(t, strings.HasPrefix(info.UserAgent, AppName+"-"))
}
