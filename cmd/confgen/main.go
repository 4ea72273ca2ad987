// cmd/confgen/main.go
package main

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// confImportPath is the package every generated file refers to as conf.
const confImportPath = "github.com/sghaida/confwire/conf"

// Dep describes one injection point of a configuration type.
type Dep struct {
	// Name is the binding name reported in metadata and errors, and the
	// name prerequisites refer to. Defaults to Field.
	Name string `yaml:"name"`

	// Field is the struct field receiving the dependency. It may be unexported.
	Field string `yaml:"field"`

	// Type is the dependency's Go type, optionally package-qualified.
	// A leading "*" is accepted and ignored; the field must be a pointer.
	Type string `yaml:"type"`

	// After lists prerequisite names. Conditional deps only.
	After []string `yaml:"after"`
}

// TypeSpec describes one configuration type.
type TypeSpec struct {
	Name     string `yaml:"name"`
	Strategy string `yaml:"strategy"`

	Required    []Dep `yaml:"required"`
	Optional    []Dep `yaml:"optional"`
	Nested      []Dep `yaml:"nested"`
	Conditional []Dep `yaml:"conditional"`

	// Method names on *Name.
	Decision string `yaml:"decision"`
	PreLoad  string `yaml:"preLoad"`
	PostLoad string `yaml:"postLoad"`
}

// Spec is the full input schema consumed by the generator. JSON specs are
// accepted as well since they are valid YAML.
type Spec struct {
	Package string `yaml:"package"`

	// Register emits an init function adding every descriptor to the
	// process-wide table.
	Register bool `yaml:"register"`

	Types []TypeSpec `yaml:"types"`
}

// ImportSpec models one Go import: optional alias and full import path.
type ImportSpec struct {
	Alias string
	Path  string
}

// templateData is the input passed to the Go template.
type templateData struct {
	Spec        Spec
	ImportsList []ImportSpec
}

// usageError marks command line misuse, reported with exit code 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type options struct {
	specPath string
	outPath  string
	dryRun   bool
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "confgen --spec <file.conf.yaml> --out <file.gen.go>",
		Short: "Generate conf descriptors from a spec file",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{msg: fmt.Sprintf("unexpected arguments: %v", args)}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.specPath) == "" || strings.TrimSpace(opts.outPath) == "" {
				return usageError{msg: "usage: confgen --spec <file.conf.yaml> --out <file.gen.go>"}
			}
			return generate(opts, stdout)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	flags := cmd.Flags()
	flags.StringVar(&opts.specPath, "spec", "", "path to the descriptor spec (YAML or JSON)")
	flags.StringVar(&opts.outPath, "out", "", "output .gen.go file path")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the generated source instead of writing it")
	return cmd
}

// run executes the generator and returns an exit code.
// It exists separately from main to allow unit testing without os.Exit.
func run(args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args on a nil slice.
		args = []string{}
	}

	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return 0
	}

	_, _ = fmt.Fprintln(stderr, "confgen:", err)
	var usage usageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func generate(opts options, stdout io.Writer) error {
	spec, err := readSpec(opts.specPath)
	if err != nil {
		return err
	}
	if err := validateSpec(&spec); err != nil {
		return err
	}

	generatedFilePath := filepath.Clean(opts.outPath)
	packageDir := filepath.Dir(generatedFilePath)

	// Without an owner file only unqualified dependency types can be resolved.
	ownerGoFilePath, err := findOwnerGoGenerateFile(packageDir)
	if err != nil {
		ownerGoFilePath = ""
	}

	importsList, err := resolveImports(ownerGoFilePath, &spec)
	if err != nil {
		return err
	}

	src, err := render(templateData{Spec: spec, ImportsList: importsList})
	if err != nil {
		return err
	}

	if opts.dryRun {
		_, err = stdout.Write(src)
		return err
	}
	if err := writeFileAtomic(generatedFilePath, src, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", generatedFilePath, err)
	}
	return nil
}

func readSpec(specPath string) (Spec, error) {
	specBytes, err := os.ReadFile(specPath)
	if err != nil {
		return Spec{}, err
	}

	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(specBytes))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return Spec{}, fmt.Errorf("spec %s is empty", specPath)
		}
		return Spec{}, fmt.Errorf("parse spec %s: %w", specPath, err)
	}
	return spec, nil
}

// render executes the template and gofmt-formats the result.
func render(data templateData) ([]byte, error) {
	var out bytes.Buffer
	if err := genTemplate.Execute(&out, data); err != nil {
		return nil, err
	}
	src, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return src, nil
}

// validateSpec validates semantic correctness of the input specification and
// normalizes dependency names and types in place.
//
// It mirrors the checks conf performs at extraction so that a bad spec fails
// at generation time rather than on first load.
func validateSpec(spec *Spec) error {
	var missingFields []string
	if strings.TrimSpace(spec.Package) == "" {
		missingFields = append(missingFields, "package")
	}
	if len(spec.Types) == 0 {
		missingFields = append(missingFields, "types (must have at least 1)")
	}
	if len(missingFields) > 0 {
		return fmt.Errorf("spec missing required fields: %v", missingFields)
	}
	if !token.IsIdentifier(spec.Package) {
		return fmt.Errorf("package %q is not a valid identifier", spec.Package)
	}

	seenTypes := make(map[string]struct{}, len(spec.Types))
	for i := range spec.Types {
		ts := &spec.Types[i]
		if !token.IsIdentifier(ts.Name) || !token.IsExported(ts.Name) {
			return fmt.Errorf("types[%d]: name %q must be an exported identifier", i, ts.Name)
		}
		if _, ok := seenTypes[ts.Name]; ok {
			return fmt.Errorf("duplicate type: %s", ts.Name)
		}
		seenTypes[ts.Name] = struct{}{}

		if err := validateType(ts); err != nil {
			return fmt.Errorf("type %s: %w", ts.Name, err)
		}
	}
	return nil
}

func validateType(ts *TypeSpec) error {
	seenNames := make(map[string]struct{})
	seenFields := make(map[string]struct{})

	validateDep := func(dep *Dep) error {
		if dep.Name == "" {
			dep.Name = dep.Field
		}
		if dep.Field == "" || dep.Type == "" {
			return fmt.Errorf("each dep must have field/type; got: %+v", *dep)
		}
		if !token.IsIdentifier(dep.Field) {
			return fmt.Errorf("field %q is not a valid identifier", dep.Field)
		}
		typ, err := normalizeType(dep.Type)
		if err != nil {
			return err
		}
		dep.Type = typ

		if _, ok := seenNames[dep.Name]; ok {
			return fmt.Errorf("duplicate dep name: %s", dep.Name)
		}
		if _, ok := seenFields[dep.Field]; ok {
			return fmt.Errorf("duplicate dep field: %s", dep.Field)
		}
		seenNames[dep.Name] = struct{}{}
		seenFields[dep.Field] = struct{}{}
		return nil
	}

	for _, deps := range [][]Dep{ts.Required, ts.Optional, ts.Nested} {
		for i := range deps {
			if err := validateDep(&deps[i]); err != nil {
				return err
			}
			if len(deps[i].After) > 0 {
				return fmt.Errorf("dep %s: after is only allowed on conditional deps", deps[i].Name)
			}
		}
	}

	conditional := make(map[string]struct{}, len(ts.Conditional))
	for i := range ts.Conditional {
		if err := validateDep(&ts.Conditional[i]); err != nil {
			return err
		}
		conditional[ts.Conditional[i].Name] = struct{}{}
	}
	for _, dep := range ts.Conditional {
		for _, after := range dep.After {
			if after == dep.Name {
				return fmt.Errorf("conditional %s refers to itself", dep.Name)
			}
			if _, ok := conditional[after]; !ok {
				return fmt.Errorf("conditional %s: prerequisite %s is not a conditional dep", dep.Name, after)
			}
		}
	}

	if len(ts.Conditional) > 0 && ts.Decision == "" {
		return errors.New("conditional deps require a decision method")
	}
	for _, method := range []string{ts.Decision, ts.PreLoad, ts.PostLoad} {
		if method != "" && !token.IsIdentifier(method) {
			return fmt.Errorf("method %q is not a valid identifier", method)
		}
	}
	return nil
}

// normalizeType accepts T, *T, pkg.T or *pkg.T and returns it without the
// pointer.
func normalizeType(expr string) (string, error) {
	typ := strings.TrimPrefix(strings.TrimSpace(expr), "*")
	parsed, err := parser.ParseExpr(typ)
	if err != nil {
		return "", fmt.Errorf("invalid dep type %q: %w", expr, err)
	}
	switch e := parsed.(type) {
	case *ast.Ident:
		return typ, nil
	case *ast.SelectorExpr:
		if _, ok := e.X.(*ast.Ident); ok {
			return typ, nil
		}
	}
	return "", fmt.Errorf("invalid dep type %q: want T or pkg.T", expr)
}

// findOwnerGoGenerateFile finds the Go source file in packageDir that contains a go:generate
// directive invoking cmd/confgen.
//
// This is used to discover the owner file's imports for package-qualified dependency types.
func findOwnerGoGenerateFile(packageDir string) (string, error) {
	dirEntries, err := os.ReadDir(packageDir)
	if err != nil {
		return "", err
	}

	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}

		fileName := entry.Name()
		if !strings.HasSuffix(fileName, ".go") ||
			strings.HasSuffix(fileName, "_test.go") ||
			strings.HasSuffix(fileName, ".gen.go") {
			continue
		}

		filePath := filepath.Join(packageDir, fileName)
		fileBytes, err := os.ReadFile(filePath)
		if err != nil {
			// Best-effort: an unreadable file shouldn't break generation.
			continue
		}

		if bytes.Contains(fileBytes, []byte("go:generate")) && bytes.Contains(fileBytes, []byte("cmd/confgen")) {
			return filePath, nil
		}
	}

	return "", fmt.Errorf("could not find owner file with go:generate invoking cmd/confgen in %s", packageDir)
}

// readImportsFromFile parses imports from a Go file.
func readImportsFromFile(goFilePath string) ([]ImportSpec, error) {
	fileSet := token.NewFileSet()
	parsedFile, err := parser.ParseFile(fileSet, goFilePath, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}

	var imports []ImportSpec
	for _, importDecl := range parsedFile.Imports {
		importPath := strings.Trim(importDecl.Path.Value, `"`)
		importAlias := ""
		if importDecl.Name != nil {
			importAlias = importDecl.Name.Name
		}
		imports = append(imports, ImportSpec{Alias: importAlias, Path: importPath})
	}

	return imports, nil
}

func ensureImport(imports *[]ImportSpec, required ImportSpec) {
	for _, existing := range *imports {
		if existing.Path == required.Path {
			return
		}
	}
	*imports = append(*imports, required)
}

var majorVersionSuffix = regexp.MustCompile(`^v[0-9]+$`)

// importIdent returns the identifier an import is referred to by.
func importIdent(imp ImportSpec) string {
	if imp.Alias != "" {
		return imp.Alias
	}
	// Import paths always use forward slashes, even on Windows.
	p := strings.TrimSpace(imp.Path)
	base := path.Base(p)
	if majorVersionSuffix.MatchString(base) {
		base = path.Base(path.Dir(p))
	}
	if i := strings.Index(base, ".v"); i > 0 {
		base = base[:i] // gopkg.in/yaml.v3
	}
	return base
}

// qualifiers returns the package identifiers referenced by dependency types,
// in first-seen order.
func qualifiers(spec *Spec) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, ts := range spec.Types {
		for _, deps := range [][]Dep{ts.Required, ts.Optional, ts.Nested, ts.Conditional} {
			for _, dep := range deps {
				q, _, ok := strings.Cut(dep.Type, ".")
				if !ok {
					continue
				}
				if _, dup := seen[q]; dup {
					continue
				}
				seen[q] = struct{}{}
				out = append(out, q)
			}
		}
	}
	return out
}

// resolveImports builds the final imports list for the generated file.
//
// Rules:
//   - conf is always imported, unaliased, first
//   - an owner import is kept only when a dependency type refers to it
//   - every qualifier used by a dependency type must resolve to an owner import
func resolveImports(ownerFilePath string, spec *Spec) ([]ImportSpec, error) {
	var importsFromOwner []ImportSpec
	if strings.TrimSpace(ownerFilePath) != "" {
		parsedOwnerImports, err := readImportsFromFile(ownerFilePath)
		if err == nil {
			importsFromOwner = parsedOwnerImports
		}
	}

	finalImports := []ImportSpec{{Path: confImportPath}}

	for _, q := range qualifiers(spec) {
		if q == "conf" {
			// conf.Type and friends are not configuration types.
			return nil, fmt.Errorf("dependency types may not be qualified with %q", q)
		}

		found := false
		for _, imp := range importsFromOwner {
			if imp.Path == confImportPath || importIdent(imp) != q {
				continue
			}
			ensureImport(&finalImports, imp)
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("no import usable as identifier %q was found in the owner file", q)
		}
	}
	return finalImports, nil
}

// genTemplate is the Go source template used to generate descriptor code.
var genTemplate = template.Must(
	template.New("confgen").Parse(`// Code generated by confgen; DO NOT EDIT.

package {{.Spec.Package}}

import (
{{- range .ImportsList}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"
{{- end}}
)
{{range $t := .Spec.Types}}
// Describe{{$t.Name}} returns the descriptor of {{$t.Name}}.
func Describe{{$t.Name}}() *conf.Descriptor {
	return conf.Describe[{{$t.Name}}](
	{{- if $t.Strategy}}
		conf.ReadWith({{printf "%q" $t.Strategy}}),
	{{- end}}
	{{- range $t.Required}}
		conf.Requires({{printf "%q" .Name}}, func(c *{{$t.Name}}, d *{{.Type}}) { c.{{.Field}} = d }),
	{{- end}}
	{{- range $t.Optional}}
		conf.Optionally({{printf "%q" .Name}}, func(c *{{$t.Name}}, d *{{.Type}}) { c.{{.Field}} = d }),
	{{- end}}
	{{- range $t.Nested}}
		conf.Nests({{printf "%q" .Name}}, func(c *{{$t.Name}}, d *{{.Type}}) { c.{{.Field}} = d }),
	{{- end}}
	{{- range $t.Conditional}}
		conf.When({{printf "%q" .Name}}, func(c *{{$t.Name}}, d *{{.Type}}) { c.{{.Field}} = d }{{range .After}}, {{printf "%q" .}}{{end}}),
	{{- end}}
	{{- if $t.Decision}}
		conf.DecideWith((*{{$t.Name}}).{{$t.Decision}}),
	{{- end}}
	{{- if $t.PreLoad}}
		conf.PreLoad((*{{$t.Name}}).{{$t.PreLoad}}),
	{{- end}}
	{{- if $t.PostLoad}}
		conf.PostLoad((*{{$t.Name}}).{{$t.PostLoad}}),
	{{- end}}
	)
}
{{end}}
{{- if .Spec.Register}}
func init() {
	conf.MustRegister(
	{{- range .Spec.Types}}
		Describe{{.Name}}(),
	{{- end}}
	)
}
{{- end}}
`),
)

// tempFile abstracts an os.File for testability.
type tempFile interface {
	Name() string
	Write([]byte) (int, error)
	Close() error
}

// File operation hooks, overridden in tests.
var (
	createTempFile = func(dir, pattern string) (tempFile, error) { return os.CreateTemp(dir, pattern) }
	chmodFile      = os.Chmod
	renameFile     = os.Rename
	removeFile     = os.Remove
)

// writeFileAtomic writes to a temporary file in the same directory and then
// renames it over targetPath, so readers never observe partial writes.
func writeFileAtomic(targetPath string, data []byte, perm os.FileMode) (err error) {
	targetDir := filepath.Dir(targetPath)

	tmpFile, err := createTempFile(targetDir, filepath.Base(targetPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if err != nil {
			_ = removeFile(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}
	if err = chmodFile(tmpPath, perm); err != nil {
		return err
	}
	return renameFile(tmpPath, targetPath)
}
