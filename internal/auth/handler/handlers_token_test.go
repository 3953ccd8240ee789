package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"qplace/internal/auth/handler/mocks"
	dErrors "qplace/pkg/domain-errors"
	"qplace/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/token-mocks.go -package=mocks Service
type TokenHandlerSuite struct {
	suite.Suite
}

func TestTokenHandlerSuite(t *testing.T) {
	suite.Run(t, new(TokenHandlerSuite))
}

func newTestHandler(t *testing.T) (*chi.Mux, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger, nil)
	r := chi.NewRouter()
	handler.Register(r)
	return r, mockService
}

func postToken(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewRequestWithBody(t, http.MethodPost, "/token", body)
	return testutil.DoRequest(r, req)
}

func (s *TokenHandlerSuite) TestHandleToken() {
	r, mockService := newTestHandler(s.T())

	mockService.EXPECT().IssueToken("lab-client", "orchid-volt-9000").
		Return("signed.jwt.token", time.Hour, nil)

	w := postToken(s.T(), r, `{"client_id":"lab-client","client_secret":"orchid-volt-9000"}`)

	testutil.AssertStatus(s.T(), w, http.StatusOK)
	resp := testutil.UnmarshalResponse[TokenResponse](s.T(), w)
	assert.Equal(s.T(), "signed.jwt.token", resp.AccessToken)
	assert.Equal(s.T(), "Bearer", resp.TokenType)
	assert.Equal(s.T(), 3600, resp.ExpiresIn)
}

func (s *TokenHandlerSuite) TestHandleTokenBadCredentials() {
	r, mockService := newTestHandler(s.T())

	mockService.EXPECT().IssueToken("lab-client", "wrong").
		Return("", time.Duration(0), dErrors.New(dErrors.CodeUnauthorized, "invalid client credentials"))

	w := postToken(s.T(), r, `{"client_id":"lab-client","client_secret":"wrong"}`)

	testutil.AssertStatusAndError(s.T(), w, http.StatusUnauthorized, "unauthorized")
}

func (s *TokenHandlerSuite) TestHandleTokenMissingFields() {
	r, _ := newTestHandler(s.T())

	s.Run("missing client_id", func() {
		w := postToken(s.T(), r, `{"client_secret":"orchid-volt-9000"}`)
		testutil.AssertStatusAndError(s.T(), w, http.StatusBadRequest, "invalid_input")
	})

	s.Run("missing client_secret", func() {
		w := postToken(s.T(), r, `{"client_id":"lab-client"}`)
		testutil.AssertStatusAndError(s.T(), w, http.StatusBadRequest, "invalid_input")
	})

	s.Run("malformed body", func() {
		w := postToken(s.T(), r, `{"client_id"`)
		testutil.AssertStatus(s.T(), w, http.StatusBadRequest)
	})
}
