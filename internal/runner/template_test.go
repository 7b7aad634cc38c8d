package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTemplates_Fields(t *testing.T) {
	type inner struct {
		Path string `template:""`
	}
	type target struct {
		Tagged    string `template:""`
		Untagged  string
		Skipped   string   `template:"-"`
		Ptr       *string  `template:""`
		NilPtr    *string  `template:""`
		List      []string `template:""`
		RawList   []string
		Headers   map[string]string
		Counts    map[string]int
		Nested    inner
		NestedPtr *inner
		NilNested *inner
		Items     []inner
		ItemPtrs  []*inner
		Untouched int
	}

	shared := "${X}"
	in := target{
		Tagged:    "${X}/data",
		Untagged:  "${X}",
		Skipped:   "${X}",
		Ptr:       &shared,
		List:      []string{"${X}", "${Y}"},
		RawList:   []string{"${X}"},
		Headers:   map[string]string{"X-Job": "${Y}"},
		Counts:    map[string]int{"k": 1},
		Nested:    inner{Path: "${X}"},
		NestedPtr: &inner{Path: "${Y}"},
		Items:     []inner{{Path: "${X}"}, {Path: "${Y}"}},
		ItemPtrs:  []*inner{{Path: "${X}"}, nil},
		Untouched: 42,
	}

	err := ExpandTemplates(&in, map[string]string{"X": "a", "Y": "b"})
	require.NoError(t, err)

	assert.Equal(t, "a/data", in.Tagged)
	assert.Equal(t, "${X}", in.Untagged)
	assert.Equal(t, "${X}", in.Skipped)
	require.NotNil(t, in.Ptr)
	assert.Equal(t, "a", *in.Ptr)
	assert.Equal(t, "${X}", shared, "the caller's string is not rewritten")
	assert.Nil(t, in.NilPtr)
	assert.Equal(t, []string{"a", "b"}, in.List)
	assert.Equal(t, []string{"${X}"}, in.RawList)
	assert.Equal(t, map[string]string{"X-Job": "b"}, in.Headers)
	assert.Equal(t, map[string]int{"k": 1}, in.Counts)
	assert.Equal(t, "a", in.Nested.Path)
	assert.Equal(t, "b", in.NestedPtr.Path)
	assert.Nil(t, in.NilNested)
	assert.Equal(t, []inner{{Path: "a"}, {Path: "b"}}, in.Items)
	assert.Equal(t, "a", in.ItemPtrs[0].Path)
	assert.Nil(t, in.ItemPtrs[1])
	assert.Equal(t, 42, in.Untouched)
}

func TestExpandTemplates_TopLevel(t *testing.T) {
	type item struct {
		Path string `template:""`
	}

	t.Run("slice of structs", func(t *testing.T) {
		in := []item{{Path: "${X}"}}
		require.NoError(t, ExpandTemplates(&in, map[string]string{"X": "a"}))
		assert.Equal(t, "a", in[0].Path)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var in *item
		require.NoError(t, ExpandTemplates(in, map[string]string{}))
		assert.Nil(t, in)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		in := "${X}"
		err := ExpandTemplates(&in, map[string]string{"X": "a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expects *struct or *[]struct")
	})
}

func TestExpandTemplates_MissingVariableNamesField(t *testing.T) {
	type nested struct {
		Path string `template:""`
	}
	type target struct {
		Nested nested
	}

	in := target{Nested: nested{Path: "${MISSING}"}}
	err := ExpandTemplates(&in, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nested: Path:")
	assert.Contains(t, err.Error(), "MISSING")
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		variables  map[string]string
		want       string
		errContain []string
	}{
		{
			name:  "plain text",
			value: "study-upload",
			want:  "study-upload",
		},
		{
			name:      "braced variables",
			value:     "${JOB_NAME}-${JOB_DATE_ISO8601}.zip",
			variables: map[string]string{"JOB_NAME": "upload", "JOB_DATE_ISO8601": "20260124T103000Z"},
			want:      "upload-20260124T103000Z.zip",
		},
		{
			name:      "short form",
			value:     "$HOME/certs",
			variables: map[string]string{"HOME": "/home/ops"},
			want:      "/home/ops/certs",
		},
		{
			name:       "undefined variable",
			value:      "${SECRET_KEY}",
			variables:  map[string]string{"OTHER": "value"},
			errContain: []string{`variable "SECRET_KEY" is not defined or not in the allowed list`},
		},
		{
			name:       "every undefined variable is reported",
			value:      "${A}/${B}",
			errContain: []string{`"A"`, `"B"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.value, tt.variables)
			if len(tt.errContain) > 0 {
				require.Error(t, err)
				for _, want := range tt.errContain {
					assert.Contains(t, err.Error(), want)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandMap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		got, err := ExpandMap(nil, map[string]string{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("values are expanded into a copy", func(t *testing.T) {
		in := map[string]string{"Authorization": "Bearer ${TOKEN}"}
		got, err := ExpandMap(in, map[string]string{"TOKEN": "abc123"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Authorization": "Bearer abc123"}, got)
		assert.Equal(t, "Bearer ${TOKEN}", in["Authorization"])
	})

	t.Run("one bad value fails the map", func(t *testing.T) {
		_, err := ExpandMap(map[string]string{"Good": "plain", "Bad": "${NOPE}"}, map[string]string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NOPE")
	})
}
