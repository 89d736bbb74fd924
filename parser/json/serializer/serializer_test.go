package serializer_test

import (
	"testing"

	"github.com/karagenc/sioengine/parser/json/serializer"
	"github.com/karagenc/sioengine/parser/json/serializer/fast"
	gojson "github.com/karagenc/sioengine/parser/json/serializer/go-json"
	"github.com/karagenc/sioengine/parser/json/serializer/stdjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Text  string `json:"text"`
	Count int    `json:"count,omitempty"`
}

func TestSerializers(t *testing.T) {
	serializers := []serializer.JSONSerializer{
		stdjson.New(),
		gojson.New(gojson.Options{}),
		fast.New(),
	}

	for _, s := range serializers {
		t.Run(s.Name(), func(t *testing.T) {
			data, err := s.Marshal([]any{"message", &greeting{Text: "hi"}})
			require.NoError(t, err)
			assert.JSONEq(t, `["message",{"text":"hi"}]`, string(data))

			var v []any
			require.NoError(t, s.Unmarshal(data, &v))
			require.Len(t, v, 2)
			assert.Equal(t, "message", v[0])
			assert.Equal(t, map[string]any{"text": "hi"}, v[1])

			var g greeting
			require.NoError(t, s.Unmarshal([]byte(`{"text":"yo","count":2}`), &g))
			assert.Equal(t, greeting{Text: "yo", Count: 2}, g)

			assert.Error(t, s.Unmarshal([]byte(`[1,`), &v))
		})
	}
}

func TestFastName(t *testing.T) {
	assert.Contains(t, []string{"sonic", "go-json"}, fast.New().Name())
}
