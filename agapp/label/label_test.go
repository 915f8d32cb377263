package label

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		cases := map[string]Label{
			"030_1_20210101.jpg":           {Age: 30, Gender: Male},
			"045_0_20210101.jpg":           {Age: 45, Gender: Female},
			"1_0_2_20161219140623097.jpg":  {Age: 1, Gender: Female},
			"26_1.png":                     {Age: 26, Gender: Male},
			"/data/test/80_0_3_whatever.x": {Age: 80, Gender: Female},
		}

		for name, expected := range cases {
			l, err := Extract(name)
			require.NoError(t, err, name)
			assert.Equal(t, expected, l, name)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		names := []string{
			"bad_filename.jpg",
			"30.jpg",
			"30",
			"x_1_a.jpg",
			"30_x_a.jpg",
			"30__a.jpg",
			"30_2_a.jpg",
			"-3_1_a.jpg",
			"",
		}

		for _, name := range names {
			l, err := Extract(name)
			require.Error(t, err, name)
			assert.Equal(t, Label{}, l, name)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), name)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		first, err := Extract("33_1_0_x.jpeg")
		require.NoError(t, err)
		second, err := Extract("33_1_0_x.jpeg")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestParseError(t *testing.T) {
	_, err := Extract("bad_filename.jpg")
	assert.Contains(t, err.Error(), "bad_filename.jpg")
	assert.Contains(t, err.Error(), "invalid age")
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("a.jpg"))
	assert.True(t, IsImage("a.JPEG"))
	assert.True(t, IsImage("dir/a.Png"))
	assert.False(t, IsImage("a.gif"))
	assert.False(t, IsImage("jpg"))
	assert.False(t, IsImage("notes.txt"))
}

func TestGenderString(t *testing.T) {
	assert.Equal(t, "Male", Male.String())
	assert.Equal(t, "Female", Female.String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "jpg", Format("a.JPG"))
	assert.Equal(t, "", Format("a"))
}
