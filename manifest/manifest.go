// Package manifest loads the optional known-app manifest and checks
// request parameters against the JSON Schemas it declares.
//
// The manifest is advisory: schemes and actions it does not mention
// pass through untouched, so the tool keeps working against apps the
// user never described. When an app entry exists, though, its action
// list is authoritative and each action's params schema is enforced
// before a request is built.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tailscale/hujson"
	"github.com/xeipuuv/gojsonschema"

	xcallback "github.com/machinefabric/xcallback-go"
)

// Manifest describes the x-callback-url apps the user has cataloged.
type Manifest struct {
	Apps map[string]App `json:"apps"`
}

// App is one target application, keyed by its URL scheme.
type App struct {
	Title   string            `json:"title,omitempty"`
	Actions map[string]Action `json:"actions"`
}

// Action describes one action. Params, when present, is a JSON Schema
// (draft-7) the request parameters must satisfy.
type Action struct {
	Description string          `json:"description,omitempty"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// DefaultPath returns <user config dir>/callback/apps.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "callback", "apps.json"), nil
}

// Load reads and parses a manifest file. The file may carry comments
// and trailing commas (JWCC); a missing file yields (nil, nil) since
// the manifest is optional.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	standardized, err := hujson.Standardize(content)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(standardized, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// ValidationError reports a parameter set the manifest rejects.
type ValidationError struct {
	Scheme   string
	Action   string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("app %q has no action %q", e.Scheme, e.Action)
	}
	return fmt.Sprintf("parameters rejected for %s/%s: %s",
		e.Scheme, e.Action, strings.Join(e.Problems, "; "))
}

// Actions returns the sorted action names declared for scheme, or nil
// when the scheme is not in the manifest.
func (m *Manifest) Actions(scheme string) []string {
	if m == nil {
		return nil
	}
	app, ok := m.Apps[scheme]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(app.Actions))
	for name := range app.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks params against the manifest entry for scheme/action.
// A nil manifest or an unlisted scheme always passes. A listed scheme
// with an unlisted action fails: the user cataloged that app's surface,
// so a typo'd action should be caught before anything launches.
func (m *Manifest) Validate(scheme, action string, params []xcallback.Param) error {
	if m == nil {
		return nil
	}
	app, ok := m.Apps[scheme]
	if !ok {
		return nil
	}
	act, ok := app.Actions[action]
	if !ok {
		return &ValidationError{Scheme: scheme, Action: action}
	}
	if len(act.Params) == 0 {
		return nil
	}

	doc := make(map[string]string, len(params))
	for _, p := range params {
		doc[p.Key] = p.Value
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(act.Params),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate %s/%s parameters: %w", scheme, action, err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{Scheme: scheme, Action: action}
	for _, desc := range result.Errors() {
		verr.Problems = append(verr.Problems, desc.String())
	}
	return verr
}
