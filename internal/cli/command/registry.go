package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "auth",
			Action:       "register",
			Method:       "POST",
			PathTemplate: "/api/auth/register",
			Fields: []Field{
				{Name: "username", Prompt: "username", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "auth",
			Action:       "login",
			Method:       "POST",
			PathTemplate: "/api/auth/login",
			Fields: []Field{
				{Name: "username", Prompt: "username", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "auth",
			Action:       "me",
			Method:       "GET",
			PathTemplate: "/api/auth/me",
			RequiresAuth: true,
		},
		{
			Service:      "lang",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/languages",
		},
		{
			Service:      "submit",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/submissions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "problem_id", Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "language", Prompt: "language", Type: FieldString, Required: true},
				{Name: "code", Prompt: "code", Type: FieldString, Required: true},
				{Name: "code_file", Prompt: "code_file", Type: FieldFile},
			},
		},
		{
			Service:      "submit",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/submissions/:id",
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/submissions",
			Fields: []Field{
				{Name: "user_id", Prompt: "user_id", Type: FieldString, Query: true},
				{Name: "problem_id", Prompt: "problem_id", Type: FieldString, Query: true},
				{Name: "judge_status", Prompt: "judge_status", Type: FieldString, Query: true},
				{Name: "page", Prompt: "page", Type: FieldString, Query: true},
				{Name: "page_size", Prompt: "page_size", Type: FieldString, Query: true},
			},
		},
		{
			Service:      "submit",
			Action:       "log",
			Method:       "GET",
			PathTemplate: "/api/submissions/:id/log",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "rejudge",
			Method:       "PUT",
			PathTemplate: "/api/submissions/:id/rejudge",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "spj-set",
			Method:       "POST",
			PathTemplate: "/api/problems/:id/spj/text",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "language", Prompt: "language (python|cpp)", Type: FieldString, Required: true},
				{Name: "content", Prompt: "content", Type: FieldString, Required: true},
				{Name: "content_file", Prompt: "content_file", Type: FieldFile},
			},
		},
		{
			Service:      "problem",
			Action:       "spj-get",
			Method:       "GET",
			PathTemplate: "/api/problems/:id/spj",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "spj-delete",
			Method:       "DELETE",
			PathTemplate: "/api/problems/:id/spj",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "spj-test",
			Method:       "POST",
			PathTemplate: "/api/problems/:id/spj/test",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "input", Prompt: "input", Type: FieldString, Required: true},
				{Name: "expected_output", Prompt: "expected_output", Type: FieldString, Required: true},
				{Name: "actual_output", Prompt: "actual_output", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "log-visibility",
			Method:       "PUT",
			PathTemplate: "/api/problems/:id/log_visibility",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "public", Prompt: "public (true|false)", Type: FieldBool, Required: true},
			},
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates the HTTP request spec for a command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}
	if query := buildQuery(cmd, params); query != "" {
		path += "?" + query
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	if strings.Contains(path, ":id") {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, ":id", url.PathEscape(value))
	}
	return path, nil
}

func buildQuery(cmd Command, params Params) string {
	values := url.Values{}
	for _, field := range cmd.Fields {
		if !field.Query {
			continue
		}
		if v := params.Get(field.Name); v != "" {
			values.Set(field.Name, v)
		}
	}
	return values.Encode()
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Service {
	case "auth":
		switch cmd.Action {
		case "register", "login":
			return map[string]string{
				"username": params.Get("username"),
				"password": params.Get("password"),
			}, nil
		}
	case "submit":
		if cmd.Action == "create" {
			code, err := stringOrFile(params, "code", "code_file")
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"problem_id": params.Get("problem_id"),
				"language":   params.Get("language"),
				"code":       code,
			}, nil
		}
	case "problem":
		switch cmd.Action {
		case "spj-set":
			content, err := stringOrFile(params, "content", "content_file")
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"language": params.Get("language"),
				"content":  content,
			}, nil
		case "spj-test":
			return map[string]string{
				"input":           params.Get("input"),
				"expected_output": params.Get("expected_output"),
				"actual_output":   params.Get("actual_output"),
			}, nil
		case "log-visibility":
			public, err := strconv.ParseBool(params.Get("public"))
			if err != nil {
				return nil, fmt.Errorf("invalid public flag: %w", err)
			}
			return map[string]bool{"public": public}, nil
		}
	}
	return nil, nil
}

// stringOrFile prefers the inline value; the file variant loads it from
// disk instead.
func stringOrFile(params Params, key, fileKey string) (string, error) {
	value := params.Get(key)
	if (value == "" || value == "_file_") && params.Get(fileKey) != "" {
		return ReadFile(params.Get(fileKey))
	}
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}
