package datasource

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goforj/datasource/dscore"
)

// Descriptor is a parsed connection string: a backend tag plus canonical options.
type Descriptor struct {
	Type    dscore.Type
	Options map[string]string
}

// Identity joins the options as sorted "name=value" pairs.
func (d Descriptor) Identity() string {
	names := make([]string, 0, len(d.Options))
	for name := range d.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+d.Options[name])
	}
	return strings.Join(parts, " ")
}

// Redacted is Identity with credentials masked, for logging.
func (d Descriptor) Redacted() string { return dscore.Redact(d.Identity()) }

// Get returns an option value.
func (d Descriptor) Get(name string) string { return d.Options[name] }

// pathSlots names the options filled by URI path segments, in order.
var pathSlots = map[dscore.Type][]string{
	dscore.TypeMySQL:    {"dbname", "prefix"},
	dscore.TypeMariaDB:  {"dbname", "prefix"},
	dscore.TypePgSQL:    {"dbname", "schema"},
	dscore.TypeRedis:    {"database", "prefix"},
	dscore.TypeMemcache: {"prefix"},
	dscore.TypeMemory:   {"prefix"},
	dscore.TypeNATS:     {"bucket", "prefix"},
	dscore.TypeDynamo:   {"table", "prefix"},
}

// Roots for the sqlite host tokens; tests pin them.
var (
	homeDir = defaultHomeDir
	baseDir = defaultBaseDir
)

func defaultHomeDir() (string, error) { return os.UserHomeDir() }

func defaultBaseDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

var (
	flatSeparators = regexp.MustCompile(`[;&\s]+`)
	uriScheme      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://|^://`)
)

// ParseDSN turns a URI-style or flat key=value connection string into a Descriptor.
//
// Example: both forms of one source
//
//	a, _ := datasource.ParseDSN("mysql://root@db:3306/shop")
//	b, _ := datasource.ParseDSN("type=mysql host=db user=root dbname=shop")
//	fmt.Println(a.Identity() == b.Identity()) // true
func ParseDSN(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, dscore.NewFail(dscore.StatusMissingArgumentDSN, "empty connection string")
	}
	var (
		d   Descriptor
		err error
	)
	if uriScheme.MatchString(raw) {
		d, err = parseURI(raw)
	} else {
		d, err = parseFlat(raw)
	}
	if err != nil {
		return Descriptor{}, err
	}
	if port, ok := d.Options["port"]; ok {
		n, convErr := strconv.Atoi(strings.TrimSpace(port))
		if convErr != nil || n < 0 {
			return Descriptor{}, dscore.NewFail(dscore.StatusWrongDsnString, "port %q is not a number", port)
		}
		d.Options["port"] = strconv.Itoa(n)
	}
	return d, nil
}

func parseURI(raw string) (Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, dscore.WrapFail(dscore.StatusWrongDsnString, err, "malformed connection string")
	}
	if u.Scheme == "" {
		return Descriptor{}, dscore.NewFail(dscore.StatusWrongDsnString, "connection string has no scheme")
	}
	typ, ok := dscore.ParseType(u.Scheme)
	if !ok {
		return Descriptor{}, dscore.NewFail(dscore.StatusUnknownSourceType, "unknown source type %q", u.Scheme)
	}

	opts := map[string]string{}
	for name, values := range u.Query() {
		if len(values) > 0 {
			opts[name] = values[len(values)-1]
		}
	}
	opts["type"] = string(typ)

	if typ.FileBased() {
		name, err := filePath(u.Host, u.Path)
		if err != nil {
			return Descriptor{}, err
		}
		opts["dbname"] = name
		return Descriptor{Type: typ, Options: opts}, nil
	}

	if host := u.Hostname(); host != "" {
		opts["host"] = host
	}
	if port := u.Port(); port != "" {
		opts["port"] = port
	} else if _, ok := opts["port"]; !ok && typ.Network() {
		opts["port"] = typ.DefaultPort()
	}
	if u.User != nil {
		if user := u.User.Username(); user != "" {
			opts["user"] = user
		}
		if pass, ok := u.User.Password(); ok {
			opts["pass"] = pass
		}
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for i, slot := range pathSlots[typ] {
		if i < len(segments) {
			opts[slot] = segments[i]
		}
	}
	return Descriptor{Type: typ, Options: opts}, nil
}

// filePath resolves the sqlite host tokens into a database path.
func filePath(host, path string) (string, error) {
	switch host {
	case "~":
		root, err := homeDir()
		if err != nil {
			return "", dscore.WrapFail(dscore.StatusWrongDsnString, err, "resolve home directory")
		}
		return root + path, nil
	case ".":
		root, err := baseDir()
		if err != nil {
			return "", dscore.WrapFail(dscore.StatusWrongDsnString, err, "resolve executable directory")
		}
		return root + path, nil
	case "..":
		root, err := baseDir()
		if err != nil {
			return "", dscore.WrapFail(dscore.StatusWrongDsnString, err, "resolve executable directory")
		}
		return filepath.Dir(root) + path, nil
	case "":
		if path == "" || path == "/" {
			return "", dscore.NewFail(dscore.StatusWrongDsnString, "file source names no database")
		}
		return path, nil
	}
	if path == "" || path == "/" {
		return host, nil
	}
	return "/" + host + path, nil
}

func parseFlat(raw string) (Descriptor, error) {
	query := flatSeparators.ReplaceAllString(raw, "&")
	values, err := url.ParseQuery(query)
	if err != nil {
		return Descriptor{}, dscore.WrapFail(dscore.StatusWrongDsnString, err, "malformed connection string")
	}
	opts := make(map[string]string, len(values))
	for name, vals := range values {
		if name == "" {
			continue
		}
		opts[name] = vals[len(vals)-1]
	}

	name, declared := opts["type"]
	if !declared {
		typ, ok := dscore.TypeForPort(opts["port"])
		if !ok {
			return Descriptor{}, dscore.NewFail(dscore.StatusSourceTypeNotDefined, "connection string declares no type")
		}
		opts["type"] = string(typ)
		return Descriptor{Type: typ, Options: opts}, nil
	}

	typ, ok := dscore.ParseType(name)
	if !ok {
		return Descriptor{}, dscore.NewFail(dscore.StatusUnknownSourceType, "unknown source type %q", name)
	}
	opts["type"] = string(typ)
	if typ.FileBased() && opts["dbname"] == "" && opts["db"] == "" && opts["database"] == "" && opts["file"] == "" {
		return Descriptor{}, dscore.NewFail(dscore.StatusDatabaseNameMissing, "%s source needs a database name", typ)
	}
	if _, ok := opts["port"]; !ok && typ.Network() {
		opts["port"] = typ.DefaultPort()
	}
	return Descriptor{Type: typ, Options: opts}, nil
}
