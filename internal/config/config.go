package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/router"
)

const (
	// ConfigFileName is the name of the route table file.
	ConfigFileName = "waypoint.yaml"

	// CurrentVersion is the only supported route table version.
	CurrentVersion = 1

	// DefaultDevtoolsAddress is where `waypoint serve` listens by default.
	DefaultDevtoolsAddress = "127.0.0.1:7070"
)

// File is a parsed waypoint.yaml.
type File struct {
	// Version is the schema version. Zero is read as CurrentVersion.
	Version int `yaml:"version,omitempty"`

	// Matcher selects the matcher mode: "auto" (default) or "regexp".
	Matcher string `yaml:"matcher,omitempty"`

	// MaxRedirects bounds guard redirect chains. Zero keeps the router default.
	MaxRedirects int `yaml:"max_redirects,omitempty"`

	// Cache is the global cache policy. When set, data caching is enabled
	// for every route with a loader.
	Cache *CacheConfig `yaml:"cache,omitempty"`

	// Devtools configures `waypoint serve`.
	Devtools DevtoolsConfig `yaml:"devtools,omitempty"`

	// Routes is the route tree.
	Routes []RouteConfig `yaml:"routes"`

	path string
}

// CacheConfig is the YAML form of router.CachePolicy.
type CacheConfig struct {
	Strategy   string        `yaml:"strategy,omitempty"`
	MaxEntries int           `yaml:"max_entries,omitempty"`
	TTL        time.Duration `yaml:"ttl,omitempty"`
}

// DevtoolsConfig configures the devtools server.
type DevtoolsConfig struct {
	// Address is the listen address.
	Address string `yaml:"address,omitempty"`

	// Watch reloads the route table when the file changes.
	Watch bool `yaml:"watch,omitempty"`
}

// RouteConfig is one route of the tree.
type RouteConfig struct {
	Path     string         `yaml:"path"`
	Name     string         `yaml:"name,omitempty"`
	Loader   string         `yaml:"loader,omitempty"`
	View     string         `yaml:"view,omitempty"`
	Guard    string         `yaml:"guard,omitempty"`
	Cache    *CacheConfig   `yaml:"cache,omitempty"`
	Meta     map[string]any `yaml:"meta,omitempty"`
	Children []RouteConfig  `yaml:"children,omitempty"`

	// Line and Column locate the route in the file.
	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

var routeKeys = map[string]bool{
	"path": true, "name": true, "loader": true, "view": true,
	"guard": true, "cache": true, "meta": true, "children": true,
}

// unknownKeyError reports a key RouteConfig does not define. yaml.v3 does
// not carry KnownFields into custom unmarshalers, so routes check their own.
type unknownKeyError struct {
	key          string
	line, column int
}

func (e *unknownKeyError) Error() string {
	return fmt.Sprintf("line %d: field %s not found in route", e.line, e.key)
}

// UnmarshalYAML decodes a route and records its position.
func (r *RouteConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if !routeKeys[key.Value] {
				return &unknownKeyError{key: key.Value, line: key.Line, column: key.Column}
			}
		}
	}
	type plain RouteConfig
	if err := node.Decode((*plain)(r)); err != nil {
		return err
	}
	r.Line, r.Column = node.Line, node.Column
	return nil
}

// Load reads waypoint.yaml from dir.
func Load(dir string) (*File, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads and validates the structure of a route table file.
// Names of loaders, views and guards are checked later, by Build.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeFileNotFound).
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path))
		}
		return nil, errors.New(errors.CodeInvalidYAML).Wrap(err)
	}

	f, err := parse(path, data)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse decodes a route table without validating it.
func Parse(data []byte) (*File, error) {
	return parse("", data)
}

func parse(path string, data []byte) (*File, error) {
	f := &File{path: path}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.New(errors.CodeEmptyRoutes).WithDetail("The route table file is empty.")
		}
		var keyErr *unknownKeyError
		if stderrors.As(err, &keyErr) {
			return nil, errors.New(errors.CodeUnknownField).
				Wrap(fmt.Errorf("%q", keyErr.key)).
				WithLocation(path, keyErr.line, keyErr.column).
				WithSuggestion("Route keys are: path, name, loader, view, guard, cache, meta, children")
		}
		code := errors.CodeInvalidYAML
		if strings.Contains(err.Error(), "not found in type") {
			code = errors.CodeUnknownField
		}
		return nil, errors.New(code).Wrap(err).WithLocationFromYAML(path, err)
	}
	if f.Version == 0 {
		f.Version = CurrentVersion
	}
	return f, nil
}

// Path returns the file the table was loaded from.
func (f *File) Path() string {
	return f.path
}

// Validate checks the parts of the table that do not depend on a registry.
func (f *File) Validate() error {
	if f.Version != CurrentVersion {
		return errors.New(errors.CodeUnsupportedVer).Wrap(fmt.Errorf("version %d", f.Version))
	}
	if _, err := f.MatcherMode(); err != nil {
		return err
	}
	if f.MaxRedirects < 0 {
		return errors.Newf(errors.CategoryValidation, "max_redirects must not be negative, got %d", f.MaxRedirects)
	}
	if f.Cache != nil {
		if _, err := f.Cache.Policy(); err != nil {
			return err
		}
	}
	if len(f.Routes) == 0 {
		return errors.New(errors.CodeEmptyRoutes)
	}
	return f.validateRoutes(f.Routes)
}

func (f *File) validateRoutes(routes []RouteConfig) error {
	for i := range routes {
		rc := &routes[i]
		if strings.TrimSpace(rc.Path) == "" {
			return f.at(errors.New(errors.CodeMissingPath), rc)
		}
		if rc.Cache != nil {
			if _, err := rc.Cache.Policy(); err != nil {
				var e *errors.Error
				if stderrors.As(err, &e) {
					return f.at(e, rc)
				}
				return err
			}
		}
		if err := f.validateRoutes(rc.Children); err != nil {
			return err
		}
	}
	return nil
}

// at attaches the route's position to e.
func (f *File) at(e *errors.Error, rc *RouteConfig) *errors.Error {
	if rc.Line > 0 {
		e.WithLocation(f.path, rc.Line, rc.Column)
	}
	return e
}

// MatcherMode returns the configured router.MatcherMode.
func (f *File) MatcherMode() (router.MatcherMode, error) {
	switch strings.ToLower(f.Matcher) {
	case "", "auto":
		return router.MatcherAuto, nil
	case "regexp":
		return router.MatcherRegexp, nil
	default:
		return 0, errors.New(errors.CodeInvalidMatcher).Wrap(fmt.Errorf("%q", f.Matcher))
	}
}

// Policy converts the YAML form into a router.CachePolicy.
func (c *CacheConfig) Policy() (router.CachePolicy, error) {
	p := router.CachePolicy{MaxEntries: c.MaxEntries, TTL: c.TTL}
	if c.Strategy != "" {
		s, err := router.ParseCacheStrategy(c.Strategy)
		if err != nil {
			return p, errors.New(errors.CodeInvalidCache).Wrap(err)
		}
		p.Strategy = s
	}
	if c.MaxEntries < 0 || c.TTL < 0 {
		return p, errors.New(errors.CodeInvalidCache).
			Wrap(fmt.Errorf("max_entries %d, ttl %s", c.MaxEntries, c.TTL))
	}
	return p, nil
}

// DevtoolsAddress returns the configured devtools address or the default.
func (f *File) DevtoolsAddress() string {
	if f.Devtools.Address != "" {
		return f.Devtools.Address
	}
	return DefaultDevtoolsAddress
}

// Exists checks whether dir holds a route table file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up from startDir to the first directory holding
// waypoint.yaml.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeFileNotFound).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
