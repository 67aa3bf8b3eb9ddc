package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formPage = `<html>
<body>
<form>
<label for="email">Email Address</label>
<input type="password" name="pw">
<button>Submit Now</button>
</form>
</body>
</html>`

func TestExtract_DocumentOrder(t *testing.T) {
	elements, err := Extract([]byte(formPage), DefaultOptions())
	require.NoError(t, err)

	require.Len(t, elements, 2)
	assert.Equal(t, Element{Type: "label", Text: "Email Address"}, elements[0])
	assert.Equal(t, Element{Type: "button", Text: "Submit Now"}, elements[1])
}

func TestExtract_TextHandling(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []Element
	}{
		{
			name: "nested text is concatenated",
			html: `<label>Email <b>Address</b></label>`,
			want: []Element{{Type: "label", Text: "Email Address"}},
		},
		{
			name: "surrounding whitespace trimmed",
			html: "<button>\n   Save  \n</button>",
			want: []Element{{Type: "button", Text: "Save"}},
		},
		{
			name: "whitespace only dropped",
			html: `<button>   </button><label></label>`,
			want: nil,
		},
		{
			name: "select precedes its options",
			html: `<select><option>Admin</option><option>User</option></select>`,
			want: []Element{
				{Type: "select", Text: "AdminUser"},
				{Type: "option", Text: "Admin"},
				{Type: "option", Text: "User"},
			},
		},
		{
			name: "malformed markup recovered",
			html: `<div><button>Go</div><label>Name`,
			want: []Element{
				{Type: "button", Text: "Go"},
				{Type: "label", Text: "Name"},
			},
		},
		{
			name: "tags outside the set ignored",
			html: `<p>Hello</p><a href="#">Link</a><button>OK</button>`,
			want: []Element{{Type: "button", Text: "OK"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract([]byte(tt.html), DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_LineAware(t *testing.T) {
	page := `<html>
<body>
<form>
<label for="email">Email Address</label>
<select name="role">
<option>Superuser</option>
</select>
<button>Submit Now</button>
</form>
</body>
</html>`

	elements, err := Extract([]byte(page), LineAwareOptions())
	require.NoError(t, err)

	require.Len(t, elements, 3)
	assert.Equal(t, Element{Type: "label", Text: "Email Address", LineNumber: 4, ParentTag: "form"}, elements[0])
	assert.Equal(t, Element{Type: "option", Text: "Superuser", LineNumber: 6, ParentTag: "select"}, elements[1])
	assert.Equal(t, Element{Type: "button", Text: "Submit Now", LineNumber: 8, ParentTag: "form"}, elements[2])
}

func TestExtract_DuplicateMarkupReportsFirstLine(t *testing.T) {
	page := `<div>
<button>Save</button>
</div>
<p>
<button>Save</button>
</p>`

	elements, err := Extract([]byte(page), LineAwareOptions())
	require.NoError(t, err)

	require.Len(t, elements, 2)
	assert.Equal(t, 2, elements[0].LineNumber)
	assert.Equal(t, 2, elements[1].LineNumber)
	assert.Equal(t, "div", elements[0].ParentTag)
	assert.Equal(t, "p", elements[1].ParentTag)
}

func TestExtract_CustomTags(t *testing.T) {
	page := `<button>One</button><label>Two</label>`
	elements, err := Extract([]byte(page), Options{Tags: []string{" BUTTON "}})
	require.NoError(t, err)
	assert.Equal(t, []Element{{Type: "button", Text: "One"}}, elements)
}

func TestExtract_EveryElementHasText(t *testing.T) {
	page := `<form><input value="x"><label> </label><option>A</option><button><img alt="x"></button></form>`
	elements, err := Extract([]byte(page), DefaultOptions())
	require.NoError(t, err)

	for _, el := range elements {
		assert.NotEmpty(t, el.Text)
	}
	assert.Equal(t, []Element{{Type: "option", Text: "A"}}, elements)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	_, err := Extract([]byte{'<', 'b', '>', 0xff, 0xfe}, DefaultOptions())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input_ui.html")
	require.NoError(t, os.WriteFile(path, []byte(formPage), 0644))

	elements, err := ExtractFile(path, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, elements, 2)

	_, err = ExtractFile(filepath.Join(dir, "missing.html"), DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
