package service

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/cleverdevil/dwell/internal/model"
)

// Micropub actions. An empty action is a create.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionUndelete = "undelete"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 32 << 20
)

// Request is a decoded micropub payload.
type Request struct {
	Action string
	URL    string       // target of update/delete/undelete
	Post   *model.Post  // create payload
	Update model.Update // update payload
}

// Blobs stores uploaded files and returns their content-addressed key.
type Blobs interface {
	Put(r io.Reader, filename string) (string, error)
}

// MediaURL is the public path of a stored blob.
func MediaURL(key string) string { return "/media/" + key }

// Decode turns a micropub body into a Request. Form and multipart bodies are
// converted to the properties shape; multipart file parts are stored in
// blobs and replaced by their media URL.
func Decode(contentType string, body io.Reader, blobs Blobs) (*Request, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, BadRequest("Invalid request data")
	}
	switch mediaType {
	case "application/json":
		return decodeJSON(body)
	case "application/x-www-form-urlencoded":
		raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
		if err != nil {
			return nil, BadRequest("Invalid request data")
		}
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, BadRequest("Invalid request data")
		}
		return decodeForm(values, nil, nil)
	case "multipart/form-data":
		if params["boundary"] == "" {
			return nil, BadRequest("Invalid request data")
		}
		form, err := multipart.NewReader(body, params["boundary"]).ReadForm(maxUploadBytes)
		if err != nil {
			return nil, BadRequest("Invalid request data")
		}
		defer form.RemoveAll()
		return decodeForm(form.Value, form.File, blobs)
	}
	return nil, BadRequest("Invalid request data")
}

type jsonPayload struct {
	Type       []string         `json:"type"`
	Properties model.Properties `json:"properties"`
	Children   []map[string]any `json:"children"`

	Action  string           `json:"action"`
	URL     string           `json:"url"`
	Replace model.Properties `json:"replace"`
	Add     model.Properties `json:"add"`
	Delete  model.Deletion   `json:"delete"`
}

func decodeJSON(body io.Reader) (*Request, error) {
	var p jsonPayload
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		return nil, BadRequest("Invalid request data")
	}

	action, err := normalizeAction(p.Action)
	if err != nil {
		return nil, err
	}
	req := &Request{Action: action, URL: p.URL}
	if action != ActionCreate {
		req.Update = model.Update{Replace: p.Replace, Add: p.Add, Delete: p.Delete}
		return req, nil
	}

	if p.Properties == nil {
		return nil, BadRequest("Invalid request data")
	}
	post := model.NewPost()
	if len(p.Type) > 0 {
		post.Type = p.Type
	}
	post.Properties = p.Properties
	if p.Children != nil {
		post.Children = p.Children
	}
	req.Post = post
	return req, nil
}

// decodeForm maps flat form fields onto properties. "h" names the
// microformat type; a trailing "[]" on a field name is dropped since every
// property is a list anyway.
func decodeForm(values map[string][]string, files map[string][]*multipart.FileHeader, blobs Blobs) (*Request, error) {
	action, err := normalizeAction(first(values["action"]))
	if err != nil {
		return nil, err
	}
	if action != ActionCreate {
		return &Request{Action: action, URL: first(values["url"])}, nil
	}

	post := model.NewPost()
	if h := strings.TrimSpace(first(values["h"])); h != "" {
		post.Type = []string{"h-" + h}
	}
	for key, vals := range values {
		switch key {
		case "h", "access_token", "action":
			continue
		}
		name := strings.TrimSuffix(key, "[]")
		for _, v := range vals {
			post.Properties[name] = append(post.Properties[name], v)
		}
	}

	if len(files) > 0 && blobs == nil {
		return nil, BadRequest("Invalid request data")
	}
	for key, headers := range files {
		name := strings.TrimSuffix(key, "[]")
		for _, fh := range headers {
			link, err := storeUpload(fh, blobs)
			if err != nil {
				return nil, err
			}
			post.Properties[name] = append(post.Properties[name], link)
		}
	}
	return &Request{Action: ActionCreate, Post: post}, nil
}

func storeUpload(fh *multipart.FileHeader, blobs Blobs) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", BadRequest("Invalid request data")
	}
	defer f.Close()
	key, err := blobs.Put(f, fh.Filename)
	if err != nil {
		return "", Internal(err)
	}
	return MediaURL(key), nil
}

func normalizeAction(a string) (string, error) {
	switch a = strings.ToLower(strings.TrimSpace(a)); a {
	case "", ActionCreate:
		return ActionCreate, nil
	case ActionUpdate, ActionDelete, ActionUndelete:
		return a, nil
	}
	return "", BadRequest("Invalid request data")
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
