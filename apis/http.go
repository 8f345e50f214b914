package apis

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/thiefmaster/librelay/comm"
)

type HTTPCredentials struct {
	BaseURL  string `yaml:"url"`
	Username string
	Password string
}

// Executor runs a command descriptor against the relay board. *comm.Client
// implements it.
type Executor interface {
	DoDescriptor(ctx context.Context, d comm.Descriptor) (comm.Result, error)
}

func newRequest(method, path string, body io.Reader, credentials HTTPCredentials) (*http.Request, error) {
	req, err := http.NewRequest(method, strings.TrimRight(credentials.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credentials.Username != "" && credentials.Password != "" {
		req.SetBasicAuth(credentials.Username, credentials.Password)
	}
	return req, nil
}
