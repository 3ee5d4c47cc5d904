package autobuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acerrors "github.com/mrz1836/autocompose/internal/errors"
)

func TestCommonRefPrefix(t *testing.T) {
	tests := []struct {
		name string
		refs []string
		want string
	}{
		{"empty", nil, ""},
		{"single", []string{"fedora-atomic/f23/x86_64/docker-host"}, "fedora-atomic/f23/x86_64/"},
		{"shared", []string{"fedora-atomic/f23/x86_64/docker-host", "fedora-atomic/f23/x86_64/cloud"}, "fedora-atomic/f23/x86_64/"},
		{"diverging", []string{"fedora-atomic/f23/x86_64/docker-host", "fedora-atomic/rawhide/x86_64/docker-host"}, "fedora-atomic/"},
		{"no slash", []string{"standalone"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommonRefPrefix(tt.refs))
		})
	}
}

func TestImageName(t *testing.T) {
	osname, name := ImageName("fedora-atomic/f23/x86_64/cloud", "fedora-atomic/f23/x86_64/")
	assert.Equal(t, "fedora-atomic", osname)
	assert.Equal(t, "fedora-atomic-cloud", name)

	osname, name = ImageName("fedora-atomic/rawhide/x86_64/docker-host", "fedora-atomic/")
	assert.Equal(t, "fedora-atomic", osname)
	assert.Equal(t, "fedora-atomic-rawhide/x86_64/docker-host", name)

	osname, name = ImageName("standalone", "")
	assert.Equal(t, "standalone", osname)
	assert.Equal(t, "standalone", name)
}

func TestComposeLogName(t *testing.T) {
	assert.Equal(t, "log-a.txt", ComposeLogName("a.json"))
	assert.Equal(t, "log-sub_b.txt", ComposeLogName("sub/b.json"))
	assert.Equal(t, "log-plain.txt", ComposeLogName("plain"))
}

func TestImageWorkDirName(t *testing.T) {
	assert.Equal(t, "work-fedora-atomic-cloud", ImageWorkDirName("fedora-atomic-cloud"))
	assert.Equal(t, "work-fedora-atomic-rawhide_x86_64", ImageWorkDirName("fedora-atomic-rawhide/x86_64"))
}

func TestLoadDefinitions(t *testing.T) {
	cfg := writeTreefiles(t, t.TempDir())
	cfg.Treefiles = append(cfg.Treefiles, "missing.json")

	defs := LoadDefinitions(cfg)
	require.Len(t, defs, 3)

	assert.Equal(t, "a", defs[0].Basename)
	assert.Equal(t, refHost, defs[0].Ref)
	assert.False(t, defs[0].Images)
	require.NoError(t, defs[0].Err)

	assert.Equal(t, refCloud, defs[1].Ref)
	assert.True(t, defs[1].Images)

	assert.Equal(t, "missing", defs[2].Basename)
	require.Error(t, defs[2].Err)
	assert.ErrorIs(t, defs[2].Err, acerrors.ErrTreefileInvalid)
}
