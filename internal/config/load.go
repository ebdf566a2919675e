package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
)

// Error codes reported by the loader.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002"
	ErrCodeNoFiles     = "E003"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006"

	ErrCodeDimension = "E201"
	ErrCodeNodeType  = "E202"
)

// LoadError is a configuration error, with its CUE position when known.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// ContentRepository is the fully loaded static configuration: dimensions,
// their variation graph and the node type schema.
type ContentRepository struct {
	Dimensions []*dimension.ContentDimension
	Source     *dimension.Source
	Graph      *dimension.VariationGraph
	NodeTypes  *nodetype.Manager
	FileCount  int
}

// LoadDir loads every .cue file in dir as one CUE instance.
// All configuration errors are collected and returned together.
func LoadDir(dir string) (*ContentRepository, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Validate(); err != nil {
		return nil, []error{cueError(ErrCodeBuildFailed, err)}
	}

	repo, errs := FromValue(value)
	if repo != nil {
		repo.FileCount = len(files)
	}
	return repo, errs
}

// LoadString compiles CUE source held in memory. Used by scenarios and tests.
func LoadString(filename, src string) (*ContentRepository, []error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Validate(); err != nil {
		return nil, []error{cueError(ErrCodeBuildFailed, err)}
	}
	return FromValue(value)
}

// FromValue extracts dimensions and node types from a built CUE value.
func FromValue(value cue.Value) (*ContentRepository, []error) {
	var errs []error
	repo := &ContentRepository{}

	dims, dimErrs := parseDimensions(value.LookupPath(cue.ParsePath("dimensions")))
	errs = append(errs, dimErrs...)
	repo.Dimensions = dims

	decls, declErrs := parseNodeTypes(value.LookupPath(cue.ParsePath("nodeTypes")))
	errs = append(errs, declErrs...)

	if len(errs) > 0 {
		return nil, errs
	}

	source, err := dimension.NewSource(dims...)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeDimension, Path: "dimensions", Message: err.Error()}}
	}
	repo.Source = source
	repo.Graph = dimension.NewVariationGraph(source)

	manager, err := nodetype.NewManager(decls)
	if err != nil {
		var loadErrs nodetype.LoadErrors
		if errors.As(err, &loadErrs) {
			for _, e := range loadErrs {
				errs = append(errs, &LoadError{Code: ErrCodeNodeType, Path: "nodeTypes", Message: e.Error()})
			}
		} else {
			errs = append(errs, &LoadError{Code: ErrCodeNodeType, Path: "nodeTypes", Message: err.Error()})
		}
		return nil, errs
	}
	repo.NodeTypes = manager

	return repo, nil
}

func parseDimensions(v cue.Value) ([]*dimension.ContentDimension, []error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, []error{cueError(ErrCodeDimension, err)}
	}

	var (
		dims []*dimension.ContentDimension
		errs []error
	)
	for i := 0; iter.Next(); i++ {
		dv := iter.Value()
		path := fmt.Sprintf("dimensions[%d]", i)

		name, err := stringField(dv, "name")
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeDimension, Path: path, Message: err.Error(), Pos: dv.Pos()})
			continue
		}

		var values []dimension.ValueConfig
		valuesIter, err := dv.LookupPath(cue.ParsePath("values")).List()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeDimension, Path: path + ".values", Message: "values must be a list", Pos: dv.Pos()})
			continue
		}
		for valuesIter.Next() {
			vv := valuesIter.Value()
			value, err := stringField(vv, "value")
			if err != nil {
				errs = append(errs, &LoadError{Code: ErrCodeDimension, Path: path + ".values", Message: err.Error(), Pos: vv.Pos()})
				continue
			}
			generalization, _ := optionalString(vv, "generalization")
			values = append(values, dimension.ValueConfig{Value: value, Generalization: generalization})
		}

		d, err := dimension.NewContentDimension(name, values)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeDimension, Path: path, Message: err.Error(), Pos: dv.Pos()})
			continue
		}
		dims = append(dims, d)
	}
	return dims, errs
}

func parseNodeTypes(v cue.Value) ([]nodetype.Declaration, []error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, []error{cueError(ErrCodeNodeType, err)}
	}

	var (
		decls []nodetype.Declaration
		errs  []error
	)
	for iter.Next() {
		name := iter.Label()
		decl, err := parseNodeType(ir.NodeTypeName(name), iter.Value())
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeNodeType, Path: "nodeTypes." + name, Message: err.Error(), Pos: iter.Value().Pos()})
			continue
		}
		decls = append(decls, decl)
	}
	return decls, errs
}

func parseNodeType(name ir.NodeTypeName, v cue.Value) (nodetype.Declaration, error) {
	decl := nodetype.Declaration{Name: name}

	var err error
	if decl.Abstract, err = optionalBool(v, "abstract"); err != nil {
		return decl, err
	}
	if decl.Root, err = optionalBool(v, "root"); err != nil {
		return decl, err
	}

	supers, err := optionalStringList(v, "superTypes")
	if err != nil {
		return decl, err
	}
	for _, s := range supers {
		decl.SuperTypes = append(decl.SuperTypes, ir.NodeTypeName(s))
	}

	if decl.Properties, err = parseProperties(v.LookupPath(cue.ParsePath("properties"))); err != nil {
		return decl, fmt.Errorf("properties: %w", err)
	}
	if decl.Constraints, err = parseConstraints(v.LookupPath(cue.ParsePath("constraints"))); err != nil {
		return decl, fmt.Errorf("constraints: %w", err)
	}

	if refs := v.LookupPath(cue.ParsePath("references")); refs.Exists() {
		decl.References = make(map[string]nodetype.ReferenceDefinition)
		it, err := refs.Fields()
		if err != nil {
			return decl, fmt.Errorf("references: %w", err)
		}
		for it.Next() {
			ref, err := parseReference(it.Value())
			if err != nil {
				return decl, fmt.Errorf("references.%s: %w", it.Label(), err)
			}
			decl.References[it.Label()] = ref
		}
	}

	if children := v.LookupPath(cue.ParsePath("childNodes")); children.Exists() {
		it, err := children.Fields()
		if err != nil {
			return decl, fmt.Errorf("childNodes: %w", err)
		}
		for it.Next() {
			childType, err := stringField(it.Value(), "type")
			if err != nil {
				return decl, fmt.Errorf("childNodes.%s: %w", it.Label(), err)
			}
			constraints, err := parseConstraints(it.Value().LookupPath(cue.ParsePath("constraints")))
			if err != nil {
				return decl, fmt.Errorf("childNodes.%s.constraints: %w", it.Label(), err)
			}
			decl.ChildNodes = append(decl.ChildNodes, nodetype.TetheredChild{
				Name:        ir.NodeName(it.Label()),
				Type:        ir.NodeTypeName(childType),
				Constraints: constraints,
			})
		}
	}

	return decl, nil
}

func parseReference(v cue.Value) (nodetype.ReferenceDefinition, error) {
	var ref nodetype.ReferenceDefinition

	scope, err := optionalString(v, "scope")
	if err != nil {
		return ref, err
	}
	ref.Scope = nodetype.PropertyScope(scope)

	if mv := v.LookupPath(cue.ParsePath("maxItems")); mv.Exists() {
		n, err := mv.Int64()
		if err != nil {
			return ref, fmt.Errorf("maxItems: %w", err)
		}
		ref.MaxItems = int(n)
	}
	if ref.Constraints, err = parseConstraints(v.LookupPath(cue.ParsePath("constraints"))); err != nil {
		return ref, fmt.Errorf("constraints: %w", err)
	}
	if ref.Properties, err = parseProperties(v.LookupPath(cue.ParsePath("properties"))); err != nil {
		return ref, fmt.Errorf("properties: %w", err)
	}
	return ref, nil
}

func parseProperties(v cue.Value) (map[string]nodetype.PropertyDefinition, error) {
	if !v.Exists() {
		return nil, nil
	}
	it, err := v.Fields()
	if err != nil {
		return nil, err
	}
	props := make(map[string]nodetype.PropertyDefinition)
	for it.Next() {
		pv := it.Value()
		typ, err := stringField(pv, "type")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", it.Label(), err)
		}
		scope, err := optionalString(pv, "scope")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", it.Label(), err)
		}
		def := nodetype.PropertyDefinition{Type: typ, Scope: nodetype.PropertyScope(scope)}
		if dv := pv.LookupPath(cue.ParsePath("default")); dv.Exists() {
			if def.Default, err = decodeValue(dv); err != nil {
				return nil, fmt.Errorf("%s.default: %w", it.Label(), err)
			}
		}
		props[it.Label()] = def
	}
	return props, nil
}

func parseConstraints(v cue.Value) (map[string]bool, error) {
	if !v.Exists() {
		return nil, nil
	}
	it, err := v.Fields()
	if err != nil {
		return nil, err
	}
	constraints := make(map[string]bool)
	for it.Next() {
		allowed, err := it.Value().Bool()
		if err != nil {
			return nil, fmt.Errorf("%s: must be a bool", it.Label())
		}
		constraints[it.Label()] = allowed
	}
	return constraints, nil
}

// decodeValue converts a concrete CUE value to the Go values the property
// converter understands.
func decodeValue(v cue.Value) (any, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.StringKind:
		return v.String()
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return nil, err
		}
		out := []any{}
		for it.Next() {
			item, err := decodeValue(it.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.StructKind:
		it, err := v.Fields()
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		for it.Next() {
			item, err := decodeValue(it.Value())
			if err != nil {
				return nil, err
			}
			out[it.Label()] = item
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value kind %s", v.IncompleteKind())
}

func stringField(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", fmt.Errorf("%s is required", field)
	}
	s, err := fv.String()
	if err != nil {
		return "", fmt.Errorf("%s must be a string", field)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", fmt.Errorf("%s must be a string", field)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, fmt.Errorf("%s must be a bool", field)
	}
	return b, nil
}

func optionalStringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	it, err := fv.List()
	if err != nil {
		return nil, fmt.Errorf("%s must be a list", field)
	}
	var out []string
	for it.Next() {
		s, err := it.Value().String()
		if err != nil {
			return nil, fmt.Errorf("%s must contain strings", field)
		}
		out = append(out, s)
	}
	return out, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// cueError extracts the first position from a CUE error.
func cueError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) > 0 {
		if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
			return &LoadError{Code: code, Message: errs[0].Error(), Pos: positions[0]}
		}
	}
	return &LoadError{Code: code, Message: err.Error()}
}
