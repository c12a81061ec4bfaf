package remote_test

import (
	"net/http/httptest"
	"testing"

	"anarchy.ttfm/scanpay/backend/mock"
	"anarchy.ttfm/scanpay/backend/remote"
	"anarchy.ttfm/scanpay/backend/testsuite"
	"anarchy.ttfm/scanpay/internal/backendrpc/rpc"
	workflowsuite "anarchy.ttfm/scanpay/workflow/testsuite"
	"github.com/gin-gonic/gin"
)

func Test_Remote(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	var server = mock.Server{
		Mock: mock.New(testsuite.MockConfig()),
		Base: e,
	}
	server.Register()

	ts := httptest.NewServer(e)
	defer ts.Close()

	client := rpc.New(rpc.Config{
		Url:           ts.URL,
		CustomHeaders: map[string]string{"X-Agent": "test"},
		Client:        ts.Client(),
	})
	testsuite.Test(t, remote.New(remote.Config{Client: client}))
}

type countedBackend struct {
	*remote.Backend
	ledger *mock.Mock
}

func (c countedBackend) Submissions() (n uint64) {
	return c.ledger.Submissions()
}

func Test_RemoteWorkflow(t *testing.T) {
	gin.SetMode(gin.TestMode)

	workflowsuite.Test(t, func(t *testing.T) workflowsuite.Submitter {
		ledger := mock.New(testsuite.MockConfig())

		e := gin.New()
		var server = mock.Server{Mock: ledger, Base: e}
		server.Register()

		ts := httptest.NewServer(e)
		t.Cleanup(ts.Close)

		client := rpc.New(rpc.Config{Url: ts.URL, Client: ts.Client()})
		return countedBackend{Backend: remote.New(remote.Config{Client: client}), ledger: ledger}
	})
}
