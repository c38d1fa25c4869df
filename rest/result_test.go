package rest

import (
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestDecodeJSONResult(t *testing.T) {
	r := DecodeResult(200, []byte(`{"success": true, "data": {"n": 1}}`))
	assert.True(t, r.IsJSON())
	obj, ok := r.Object()
	assert.True(t, ok)
	assert.Equal(t, true, obj["success"])

	var v struct {
		Data struct {
			N int `json:"n"`
		} `json:"data"`
	}
	assert.NoError(t, r.Unmarshal(&v))
	assert.Equal(t, 1, v.Data.N)
}

func TestDecodeTextResult(t *testing.T) {
	r := DecodeResult(500, []byte("garbage\n{\"success\": false}"))
	assert.False(t, r.IsJSON())
	assert.Equal(t, "garbage\n{\"success\": false}", r.Value)
	_, ok := r.Object()
	assert.False(t, ok)
	assert.Error(t, r.Unmarshal(&struct{}{}))
}

func TestDecodeEmptyResult(t *testing.T) {
	r := DecodeResult(204, nil)
	assert.False(t, r.IsJSON())
	assert.Equal(t, "", r.Value)
	assert.Equal(t, "", r.Text())
}

func TestDecodeArrayResult(t *testing.T) {
	r := DecodeResult(200, []byte(`[1, 2]`))
	assert.True(t, r.IsJSON())
	assert.Equal(t, []interface{}{1.0, 2.0}, r.Value)
	_, ok := r.Object()
	assert.False(t, ok, "An array is not an object")
}

func TestCheckSuccessEnvelope(t *testing.T) {
	err := CheckSuccessEnvelope(DecodeResult(200, []byte(`{"success": false, "msg": "bad thing"}`)))
	assert.EqualError(t, err, "action failed 'bad thing'")

	assert.NoError(t, CheckSuccessEnvelope(DecodeResult(200, []byte(`{"success": true}`))))
	assert.NoError(t, CheckSuccessEnvelope(DecodeResult(200, []byte(`{"msg": "no envelope"}`))))
	assert.NoError(t, CheckSuccessEnvelope(DecodeResult(200, []byte(`plain`))))
}

func TestStringMember(t *testing.T) {
	obj := map[string]interface{}{"s": "text", "n": 8443.0, "b": false}
	assert.Equal(t, "text", StringMember(obj, "s"))
	assert.Equal(t, "8443", StringMember(obj, "n"))
	assert.Equal(t, "false", StringMember(obj, "b"))
	assert.Equal(t, "", StringMember(obj, "missing"))
}
