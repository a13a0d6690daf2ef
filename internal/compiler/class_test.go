package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwp0/Cor/internal/decl"
)

func compileClassString(t *testing.T, src, path string) (*decl.ClassDecl, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileClass(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileClassBasic(t *testing.T) {
	d, err := compileClassString(t, `
		class: Animal: {
			version: "1.2.0"

			fields: {
				name: {param: "required", reader: true}
				legs: {param: "optional", default: 4}
			}

			methods: {
				speak: {
					args: ["greeting"]
					body: {op: "arg", name: "greeting"}
				}
			}
		}
	`, "class.Animal")
	require.NoError(t, err)

	assert.Equal(t, "Animal", d.Name)
	assert.Equal(t, "1.2.0", d.Version)
	assert.False(t, d.Abstract)
	assert.Nil(t, d.Parent)

	require.Len(t, d.Fields, 2)
	assert.Equal(t, "name", d.Fields[0].Name)
	assert.Equal(t, decl.ParamRequired, d.Fields[0].Policy)
	assert.Equal(t, decl.ScopeInstance, d.Fields[0].Scope)
	assert.Equal(t, "name", d.Fields[0].Reader)
	assert.Equal(t, "legs", d.Fields[1].Name)
	assert.Equal(t, decl.ParamOptional, d.Fields[1].Policy)
	require.NotNil(t, d.Fields[1].Default)
	def, err := d.Fields[1].Default()
	require.NoError(t, err)
	assert.Equal(t, decl.Int(4), def)

	require.Len(t, d.Methods, 1)
	assert.Equal(t, "speak", d.Methods[0].Name)
	assert.Equal(t, 1, d.Methods[0].Arity)
	assert.Equal(t, decl.DispatchInstance, d.Methods[0].Scope)
	require.NotNil(t, d.Methods[0].Body)
}

func TestCompileClassFieldDefaults(t *testing.T) {
	d, err := compileClassString(t, `
		class: Box: {
			fields: {
				contents: {}
			}
		}
	`, "class.Box")
	require.NoError(t, err)

	require.Len(t, d.Fields, 1)
	f := d.Fields[0]
	assert.Equal(t, decl.ScopeInstance, f.Scope)
	assert.Equal(t, decl.ParamNone, f.Policy)
	assert.Equal(t, decl.KindScalar, f.Kind)
	assert.Nil(t, f.Default)
	assert.Empty(t, f.Reader)
	assert.Empty(t, f.Writer)
}

func TestCompileClassParentForms(t *testing.T) {
	d, err := compileClassString(t, `
		class: Dog: {
			isa: {class: "Animal", min: "1.0.0"}
		}
	`, "class.Dog")
	require.NoError(t, err)
	require.NotNil(t, d.Parent)
	assert.Equal(t, "Animal", d.Parent.Name)
	assert.Equal(t, "1.0.0", d.Parent.MinVersion)

	d, err = compileClassString(t, `
		class: Cat: {
			isa: "Animal"
		}
	`, "class.Cat")
	require.NoError(t, err)
	require.NotNil(t, d.Parent)
	assert.Equal(t, "Animal", d.Parent.Name)
	assert.Empty(t, d.Parent.MinVersion)
}

func TestCompileClassRoles(t *testing.T) {
	d, err := compileClassString(t, `
		class: Duck: {
			does: ["Walker", "Swimmer"]
		}
	`, "class.Duck")
	require.NoError(t, err)
	assert.Equal(t, []string{"Walker", "Swimmer"}, d.Roles)
}

func TestCompileClassAbstract(t *testing.T) {
	d, err := compileClassString(t, `
		class: Shape: {
			abstract: true
		}
	`, "class.Shape")
	require.NoError(t, err)
	assert.True(t, d.Abstract)
}

func TestCompileClassQuotedName(t *testing.T) {
	d, err := compileClassString(t, `
		class: "Zoo::Keeper": {
			version: "0.1.0"
		}
	`, `class."Zoo::Keeper"`)
	require.NoError(t, err)
	assert.Equal(t, "Zoo::Keeper", d.Name)
}

func TestCompileClassSharedField(t *testing.T) {
	d, err := compileClassString(t, `
		class: Counter: {
			fields: {
				live: {shared: true, default: 0, reader: true}
			}
		}
	`, "class.Counter")
	require.NoError(t, err)

	require.Len(t, d.Fields, 1)
	assert.Equal(t, decl.ScopeShared, d.Fields[0].Scope)
	assert.Equal(t, "live", d.Fields[0].Reader)
	def, err := d.Fields[0].Default()
	require.NoError(t, err)
	assert.Equal(t, decl.Int(0), def)
}

func TestCompileClassSequenceField(t *testing.T) {
	d, err := compileClassString(t, `
		class: Log: {
			fields: {
				lines: {sequence: true, default: ["boot"]}
			}
		}
	`, "class.Log")
	require.NoError(t, err)

	require.Len(t, d.Fields, 1)
	assert.Equal(t, decl.KindSequence, d.Fields[0].Kind)
	def, err := d.Fields[0].Default()
	require.NoError(t, err)
	assert.Equal(t, decl.Array{decl.String("boot")}, def)
}

func TestCompileClassAccessorNames(t *testing.T) {
	d, err := compileClassString(t, `
		class: Gauge: {
			fields: {
				level:  {reader: true, writer: true}
				label:  {reader: "tag", writer: "retag"}
				hidden: {reader: false}
			}
		}
	`, "class.Gauge")
	require.NoError(t, err)

	require.Len(t, d.Fields, 3)
	assert.Equal(t, "level", d.Fields[0].Reader)
	assert.Equal(t, "set_level", d.Fields[0].Writer)
	assert.Equal(t, "tag", d.Fields[1].Reader)
	assert.Equal(t, "retag", d.Fields[1].Writer)
	assert.Empty(t, d.Fields[2].Reader)
}

func TestCompileClassMethodFlags(t *testing.T) {
	d, err := compileClassString(t, `
		class: Robot: {
			methods: {
				flavor: {
					class: true
					body: {op: "const", value: "steel"}
				}
				describe: {
					overrides: true
					body: {op: "next"}
				}
			}
		}
	`, "class.Robot")
	require.NoError(t, err)

	require.Len(t, d.Methods, 2)
	assert.Equal(t, decl.DispatchClass, d.Methods[0].Scope)
	assert.Equal(t, 0, d.Methods[0].Arity)
	assert.False(t, d.Methods[0].Overrides)
	assert.Equal(t, decl.DispatchInstance, d.Methods[1].Scope)
	assert.True(t, d.Methods[1].Overrides)
}

func TestCompileClassHookOrder(t *testing.T) {
	d, err := compileClassString(t, `
		class: Counter: {
			fields: {
				live: {shared: true, default: 0}
			}
			hooks: {
				adjust: [
					{op: "inc", field: "live"},
					{op: "inc", field: "live"},
				]
				destruct: [
					{op: "inc", field: "live", by: -2},
				]
			}
		}
	`, "class.Counter")
	require.NoError(t, err)

	require.Len(t, d.Hooks, 3)
	assert.Equal(t, decl.HookAdjust, d.Hooks[0].Kind)
	assert.Equal(t, decl.HookAdjust, d.Hooks[1].Kind)
	assert.Equal(t, decl.HookDestruct, d.Hooks[2].Kind)
	for _, h := range d.Hooks {
		require.NotNil(t, h.Body)
	}
}

func TestCompileClassMissingBody(t *testing.T) {
	_, err := compileClassString(t, `
		class: Bad: {
			methods: {
				ghost: {args: ["x"]}
			}
		}
	`, "class.Bad")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "body is required")
	assert.Contains(t, err.Error(), "ghost")
}

func TestCompileClassInvalidParamPolicy(t *testing.T) {
	_, err := compileClassString(t, `
		class: Bad: {
			fields: {
				name: {param: "sometimes"}
			}
		}
	`, "class.Bad")

	require.Error(t, err)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "fields.name.param", compileErr.Field)
	assert.Contains(t, compileErr.Message, "sometimes")
}

func TestCompileClassRejectsFloatDefault(t *testing.T) {
	_, err := compileClassString(t, `
		class: Bad: {
			fields: {
				weight: {default: 1.5}
			}
		}
	`, "class.Bad")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestCompileClassValidatesCleanly(t *testing.T) {
	d, err := compileClassString(t, `
		class: Dog: {
			version: "2.0.0"
			isa: {class: "Animal", min: "1.0.0"}
			does: ["Walker"]
			fields: {
				name: {param: "required", reader: true}
			}
			methods: {
				speak: {body: {op: "const", value: "woof"}}
			}
			hooks: {
				adjust: [{op: "get", field: "name"}]
			}
		}
	`, "class.Dog")
	require.NoError(t, err)
	assert.Empty(t, d.Validate())
}

func TestCompileClassErrorCarriesPosition(t *testing.T) {
	_, err := compileClassString(t, `
		class: Bad: {
			fields: {
				name: {param: "sometimes"}
			}
		}
	`, "class.Bad")

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.True(t, compileErr.Pos.IsValid())
}
