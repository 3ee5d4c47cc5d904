package autobuild

import (
	"path/filepath"
	"strings"

	"github.com/mrz1836/autocompose/internal/config"
	"github.com/mrz1836/autocompose/internal/constants"
)

// TreeDefinition is one treefile named in the configuration.
type TreeDefinition struct {
	// Key is the treefile path exactly as written in the configuration.
	Key string
	// Path is Key resolved against the configuration directory.
	Path string
	// Ref is the ref the treefile composes.
	Ref string
	// Basename is Key without its .json suffix.
	Basename string
	// Images reports whether disk images are configured for this tree.
	Images bool
	// Err is set when the treefile could not be loaded. Such a definition
	// fails its task without launching anything.
	Err error
}

// LoadDefinitions reads every treefile named by cfg, in configuration order.
// A treefile that fails to load yields a definition with Err set.
func LoadDefinitions(cfg *config.Config) []TreeDefinition {
	defs := make([]TreeDefinition, 0, len(cfg.Treefiles))
	for _, key := range cfg.Treefiles {
		path := key
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Dir, key)
		}
		basename := strings.Replace(key, ".json", "", 1)
		def := TreeDefinition{
			Key:      key,
			Path:     path,
			Basename: basename,
			Images:   cfg.DisksEnabled(basename),
		}
		tf, err := config.LoadTreefile(path)
		if err != nil {
			def.Err = err
		} else {
			def.Ref = tf.Ref
		}
		defs = append(defs, def)
	}
	return defs
}

// ComposeLogName is the per-treefile compose log file name.
func ComposeLogName(key string) string {
	name := strings.Replace(key, ".json", ".txt", 1)
	if !strings.HasSuffix(name, ".txt") {
		name += ".txt"
	}
	return constants.ComposeLogPrefix + flatten(name)
}

// ImageWorkDirName is the image builder's working directory for a name.
func ImageWorkDirName(name string) string {
	return "work-" + flatten(name)
}

func flatten(s string) string {
	return strings.ReplaceAll(s, "/", "_")
}

// CommonRefPrefix returns the prefix shared by refs: the first ref up to and
// including its last '/', shortened to what every other ref agrees with.
func CommonRefPrefix(refs []string) string {
	if len(refs) == 0 {
		return ""
	}
	first := refs[0]
	prefix := first[:strings.LastIndex(first, "/")+1]
	for _, ref := range refs[1:] {
		n := 0
		for n < len(ref) && n < len(prefix) && ref[n] == prefix[n] {
			n++
		}
		prefix = prefix[:n]
	}
	return prefix
}

// ImageName derives the OS name and image name for ref given the common
// prefix of all refs in the cycle. The OS name is the ref up to its first
// '/'; the image name is the OS name, a dash, and the ref past the prefix.
// A ref without any '/' is its own OS name and image name.
func ImageName(ref, prefix string) (osname, name string) {
	slash := strings.Index(ref, "/")
	if slash < 0 {
		return ref, ref
	}
	osname = ref[:slash]
	rest := strings.TrimPrefix(ref, prefix)
	return osname, osname + "-" + rest
}
