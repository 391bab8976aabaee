package schema

import (
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

const shapeFile = "graphq-schema-shape.cue"

// shape constrains schema documents. Unknown fields inside a type or key are
// errors; other top-level fields are left alone so a document can carry more
// than the schema.
const shape = `
#Kind: "string" | "int" | "float" | "bool" | "ref"

#Key: {
	kind:        #Kind | *"string"
	collection?: bool
	related?:    string
	notion?:     string
	sort?:       #Kind
}

#Type: {
	traits?:       [...string]
	relationship?: bool
	keys?:         [string]: #Key
}

types?: [string]: #Type
`

// Compile reads the "types" field of v into a schema.
func Compile(v cue.Value) (*graph.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	constraint := v.Context().CompileString(shape, cue.Filename(shapeFile))
	if err := constraint.Err(); err != nil {
		return nil, fmt.Errorf("schema: shape: %w", err)
	}
	unified := v.Unify(constraint)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	typesVal := unified.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CompileError{Field: "types", Message: "no types declared", Pos: v.Pos()}
	}
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []graph.TypeDef
	for iter.Next() {
		name := iter.Selector().Unquoted()
		src := v.LookupPath(cue.MakePath(cue.Str("types"), cue.Str(name)))
		def, err := compileType(name, iter.Value(), src)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &CompileError{Field: "types", Message: "no types declared", Pos: v.Pos()}
	}

	s, err := graph.NewSchema(defs...)
	if err != nil {
		return nil, &CompileError{Field: "types", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("types")).Pos()}
	}
	return s, nil
}

// compileType reads one type. v is the validated value; src is the same
// field in the user's document, used for error positions.
func compileType(name string, v, src cue.Value) (graph.TypeDef, error) {
	def := graph.TypeDef{Name: name, Keys: make(map[string]graph.PropertyKey)}

	if tv := v.LookupPath(cue.ParsePath("traits")); tv.Exists() {
		if err := tv.Decode(&def.Traits); err != nil {
			return def, formatCUEError(err)
		}
		if slices.Contains(def.Traits, name) {
			return def, &CompileError{
				Field:   "types." + name + ".traits",
				Message: "a type cannot list itself as a trait",
				Pos:     src.LookupPath(cue.ParsePath("traits")).Pos(),
			}
		}
	}

	if rv := v.LookupPath(cue.ParsePath("relationship")); rv.Exists() {
		rel, err := rv.Bool()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.Relationship = rel
	}

	kv := v.LookupPath(cue.ParsePath("keys"))
	if !kv.Exists() {
		return def, nil
	}
	iter, err := kv.Fields()
	if err != nil {
		return def, formatCUEError(err)
	}
	for iter.Next() {
		keyName := iter.Selector().Unquoted()
		keySrc := src.LookupPath(cue.MakePath(cue.Str("keys"), cue.Str(keyName)))
		key, err := compileKey(name, keyName, iter.Value(), keySrc.Pos())
		if err != nil {
			return def, err
		}
		def.Keys[keyName] = key
	}
	return def, nil
}

// keyDoc mirrors #Key for decoding.
type keyDoc struct {
	Kind       string `json:"kind"`
	Collection bool   `json:"collection"`
	Related    string `json:"related"`
	Notion     string `json:"notion"`
	Sort       string `json:"sort"`
}

func compileKey(typeName, name string, v cue.Value, pos token.Pos) (graph.PropertyKey, error) {
	var doc keyDoc
	if err := v.Decode(&doc); err != nil {
		return graph.PropertyKey{}, formatCUEError(err)
	}
	field := fmt.Sprintf("types.%s.keys.%s", typeName, name)
	if name == graph.IdentityKey {
		return graph.PropertyKey{}, &CompileError{Field: field, Message: "the identity key cannot be declared", Pos: pos}
	}
	if doc.Related != "" && doc.Kind != string(ir.KindRef) {
		return graph.PropertyKey{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("related type %q needs kind %q, got %q", doc.Related, ir.KindRef, doc.Kind),
			Pos:     pos,
		}
	}
	if doc.Notion != "" && doc.Related == "" {
		return graph.PropertyKey{}, &CompileError{Field: field, Message: "notion needs a related type", Pos: pos}
	}
	return graph.PropertyKey{
		Name:       name,
		Kind:       ir.Kind(doc.Kind),
		Collection: doc.Collection,
		Related:    doc.Related,
		Notion:     doc.Notion,
		SortKind:   ir.Kind(doc.Sort),
	}, nil
}

// CompileString compiles a schema document held in memory. filename is used
// in error positions.
func CompileString(src, filename string) (*graph.Schema, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// LoadFile compiles a single CUE file.
func LoadFile(path string) (*graph.Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileString(string(src), path)
}

// LoadDir compiles the CUE package in dir. All its files are unified.
func LoadDir(dir string) (*graph.Schema, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load schema: no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load schema: %w", inst.Err)
	}
	return Compile(cuecontext.New().BuildInstance(inst))
}

// Load compiles path, which may be a CUE file or a directory.
func Load(path string) (*graph.Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}
