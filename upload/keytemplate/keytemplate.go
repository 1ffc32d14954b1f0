// Package keytemplate evaluates object key templates.
package keytemplate

import (
	"bytes"
	"fmt"
	"path"
	"runtime"
	"strings"
	"text/template"
	"time"

	"github.com/bitrise-io/go-s3up/secretkeys"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

// DefaultTemplate keys every object by its path relative to the source.
const DefaultTemplate = "{{ .Path }}"

// maxKeyLength is the S3 object key limit in bytes.
const maxKeyLength = 1024

type Model struct {
	envRepo env.Repository
	secrets secretkeys.Manager
	logger  log.Logger
	root    string
	os      string
	arch    string
	now     func() time.Time
}

// File is the file the key is evaluated for.
type File struct {
	// Rel is the slash separated path relative to the source root.
	Rel string
}

type templateInventory struct {
	Path string
	Base string
	Dir  string
	Ext  string
	Date string
	OS   string
	Arch string
}

// NewModel creates a Model. Relative paths passed to `checksum` are resolved against root.
func NewModel(envRepo env.Repository, logger log.Logger, root string) Model {
	return Model{
		envRepo: envRepo,
		secrets: secretkeys.NewManager(),
		logger:  logger,
		root:    root,
		os:      runtime.GOOS,
		arch:    runtime.GOARCH,
		now:     time.Now,
	}
}

// Evaluate returns the object key for file from a key template.
func (m Model) Evaluate(key string, file File) (string, error) {
	if strings.TrimSpace(key) == "" {
		key = DefaultTemplate
	}

	funcMap := template.FuncMap{
		"getenv":   m.getEnvVar,
		"checksum": m.checksum,
	}

	tmpl, err := template.New("").Funcs(funcMap).Parse(key)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	resultBuffer := bytes.Buffer{}
	if err := tmpl.Execute(&resultBuffer, m.inventory(file)); err != nil {
		return "", err
	}

	result := strings.TrimLeft(resultBuffer.String(), "/")
	if result == "" {
		return "", fmt.Errorf("key template %q evaluated to an empty key", key)
	}
	if len(result) > maxKeyLength {
		return "", fmt.Errorf("key is longer than %d bytes: %s", maxKeyLength, result)
	}
	return result, nil
}

func (m Model) inventory(file File) templateInventory {
	dir := path.Dir(file.Rel)
	if dir == "." {
		dir = ""
	}
	return templateInventory{
		Path: file.Rel,
		Base: path.Base(file.Rel),
		Dir:  dir,
		Ext:  path.Ext(file.Rel),
		Date: m.now().UTC().Format("2006-01-02"),
		OS:   m.os,
		Arch: m.arch,
	}
}

// getEnvVar returns an empty string for variables listed as secrets.
func (m Model) getEnvVar(key string) string {
	if m.secrets != nil && m.secrets.IsSecret(m.envRepo, key) {
		m.logger.Warnf("Environment variable %s is a secret and can't be used in the key template", key)
		return ""
	}

	value := m.envRepo.Get(key)
	if value == "" {
		m.logger.Warnf("Environment variable %s used in the key template is not defined", key)
	}
	return value
}
