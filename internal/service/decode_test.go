package service

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlobs struct{ files map[string][]byte }

func (m *memBlobs) Put(r io.Reader, filename string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	key := "k-" + filename
	m.files[key] = b
	return key, nil
}

type failingBlobs struct{}

func (failingBlobs) Put(io.Reader, string) (string, error) { return "", errors.New("disk full") }

func TestDecodeJSONCreate(t *testing.T) {
	body := `{"type":["h-entry"],"properties":{"content":["hello"],"category":["a","b"]}}`
	req, err := Decode("application/json; charset=utf-8", strings.NewReader(body), nil)
	require.NoError(t, err)

	assert.Equal(t, ActionCreate, req.Action)
	require.NotNil(t, req.Post)
	assert.Equal(t, []string{"h-entry"}, req.Post.Type)
	assert.Equal(t, []any{"hello"}, req.Post.Properties["content"])
	assert.Equal(t, []any{"a", "b"}, req.Post.Properties["category"])
	assert.NotNil(t, req.Post.Children)
}

func TestDecodeJSONUpdate(t *testing.T) {
	body := `{"action":"update","url":"/2024/hello",
		"replace":{"content":["new"]},
		"add":{"category":["x"]},
		"delete":["syndication"]}`
	req, err := Decode("application/json", strings.NewReader(body), nil)
	require.NoError(t, err)

	assert.Equal(t, ActionUpdate, req.Action)
	assert.Equal(t, "/2024/hello", req.URL)
	assert.Nil(t, req.Post)
	assert.Equal(t, []any{"new"}, req.Update.Replace["content"])
	assert.Equal(t, []any{"x"}, req.Update.Add["category"])
	assert.Equal(t, []string{"syndication"}, req.Update.Delete.Keys)
}

func TestDecodeJSONDeleteValues(t *testing.T) {
	body := `{"action":"update","url":"/x","delete":{"category":["a"]}}`
	req, err := Decode("application/json", strings.NewReader(body), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, req.Update.Delete.Values["category"])
}

func TestDecodeForm(t *testing.T) {
	body := "h=entry&content=hello+world&category[]=one&category[]=two&access_token=secret"
	req, err := Decode("application/x-www-form-urlencoded", strings.NewReader(body), nil)
	require.NoError(t, err)

	assert.Equal(t, ActionCreate, req.Action)
	assert.Equal(t, []string{"h-entry"}, req.Post.Type)
	assert.Equal(t, []any{"hello world"}, req.Post.Properties["content"])
	assert.Equal(t, []any{"one", "two"}, req.Post.Properties["category"])
	assert.NotContains(t, req.Post.Properties, "access_token")
	assert.NotContains(t, req.Post.Properties, "h")
}

func TestDecodeFormActions(t *testing.T) {
	req, err := Decode("application/x-www-form-urlencoded",
		strings.NewReader("action=delete&url=https%3A%2F%2Fexample.com%2F2024%2Fhello"), nil)
	require.NoError(t, err)
	assert.Equal(t, ActionDelete, req.Action)
	assert.Equal(t, "https://example.com/2024/hello", req.URL)

	req, err = Decode("application/x-www-form-urlencoded", strings.NewReader("action=UNDELETE&url=/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, ActionUndelete, req.Action)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (string, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf
}

func TestDecodeMultipartStoresFiles(t *testing.T) {
	blobs := &memBlobs{}
	ct, body := multipartBody(t, map[string]string{"h": "entry", "content": "look"}, "photo", "cat.jpg", []byte("jpeg bytes"))

	req, err := Decode(ct, body, blobs)
	require.NoError(t, err)
	assert.Equal(t, []any{"look"}, req.Post.Properties["content"])
	assert.Equal(t, []any{"/media/k-cat.jpg"}, req.Post.Properties["photo"])
	assert.Equal(t, []byte("jpeg bytes"), blobs.files["k-cat.jpg"])
}

func TestDecodeMultipartFileWithoutStore(t *testing.T) {
	ct, body := multipartBody(t, map[string]string{"h": "entry"}, "photo", "cat.jpg", []byte("x"))
	_, err := Decode(ct, body, nil)
	assertStatus(t, err, http.StatusBadRequest, "Invalid request data")
}

func TestDecodeMultipartStoreFailure(t *testing.T) {
	ct, body := multipartBody(t, nil, "photo", "cat.jpg", []byte("x"))
	_, err := Decode(ct, body, failingBlobs{})
	assertStatus(t, err, http.StatusInternalServerError, "")
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name, contentType, body string
	}{
		{"malformed json", "application/json", `{"type":`},
		{"json without properties", "application/json", `{"type":["h-entry"]}`},
		{"unknown action", "application/json", `{"action":"frobnicate","url":"/x"}`},
		{"unsupported type", "text/plain", "hello"},
		{"empty content type", "", "hello"},
		{"multipart without boundary", "multipart/form-data", "--x--"},
		{"unknown form action", "application/x-www-form-urlencoded", "action=nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.contentType, strings.NewReader(tt.body), nil)
			assertStatus(t, err, http.StatusBadRequest, "Invalid request data")
		})
	}
}
