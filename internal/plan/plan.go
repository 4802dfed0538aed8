// Package plan loads YAML plan files: an ordered list of remote
// operations that run inside a single session.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sshmux/internal/session"
)

// Plan is the top-level document.
type Plan struct {
	Name  string `yaml:"name"`
	Host  string `yaml:"host,omitempty"` // used when no host is given on the command line
	Steps []Step `yaml:"steps"`
}

// Transfer names both ends of an upload or download.
type Transfer struct {
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
}

// Step is one operation.  Exactly one of Exec, Test, Upload or Download
// is set.
type Step struct {
	Name         string    `yaml:"name,omitempty"`
	Exec         string    `yaml:"exec,omitempty"`
	Test         string    `yaml:"test,omitempty"`
	Upload       *Transfer `yaml:"upload,omitempty"`
	Download     *Transfer `yaml:"download,omitempty"`
	Expect       *bool     `yaml:"expect,omitempty"` // wanted result of a test, default true
	IgnoreErrors bool      `yaml:"ignore_errors,omitempty"`
}

// Kind returns which action the step performs.
func (s Step) Kind() string {
	switch {
	case s.Exec != "":
		return "exec"
	case s.Test != "":
		return "test"
	case s.Upload != nil:
		return "upload"
	case s.Download != nil:
		return "download"
	}
	return ""
}

// Label is Name, or a description built from the action.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind() {
	case "exec":
		return "exec " + s.Exec
	case "test":
		return "test " + s.Test
	case "upload":
		return fmt.Sprintf("upload %s -> %s", s.Upload.Local, s.Upload.Remote)
	case "download":
		return fmt.Sprintf("download %s -> %s", s.Download.Remote, s.Download.Local)
	}
	return "(empty)"
}

// Want is the result a test step must produce to pass.
func (s Step) Want() bool {
	return s.Expect == nil || *s.Expect
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a plan document.  Unknown keys are
// rejected so a typo cannot silently skip an action.
func Parse(b []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	p := &Plan{}
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the host, when set, and that every step has exactly
// one complete action.
func (p *Plan) Validate() error {
	if p.Host != "" {
		if _, _, err := session.SplitHost(p.Host); err != nil {
			return fmt.Errorf("host: %w", err)
		}
	}
	if len(p.Steps) == 0 {
		return errors.New("plan has no steps")
	}
	for i, s := range p.Steps {
		n := 0
		for _, set := range []bool{s.Exec != "", s.Test != "", s.Upload != nil, s.Download != nil} {
			if set {
				n++
			}
		}
		switch {
		case n == 0:
			return fmt.Errorf("steps[%d]: one of exec, test, upload or download is required", i)
		case n > 1:
			return fmt.Errorf("steps[%d]: only one of exec, test, upload or download may be set", i)
		}
		if s.Expect != nil && s.Test == "" {
			return fmt.Errorf("steps[%d]: expect only applies to test steps", i)
		}
		for _, t := range []*Transfer{s.Upload, s.Download} {
			if t == nil {
				continue
			}
			if strings.TrimSpace(t.Local) == "" || strings.TrimSpace(t.Remote) == "" {
				return fmt.Errorf("steps[%d].%s: local and remote are required", i, s.Kind())
			}
		}
	}
	return nil
}
