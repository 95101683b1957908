//go:build bdd

package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/cucumber/godog"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// connectWorld is the per-scenario state of the OAuth feature.
type connectWorld struct {
	t       *testing.T
	h       *harness
	fp      *fakeProvider
	oauth   *OAuthUsecase
	authURL *url.URL
	userID  string
	err     error
}

func (w *connectWorld) sandbox() error {
	w.h = newHarness(w.t)
	w.fp = newFakeProvider(w.t)
	w.oauth = newOAuth(w.h, w.fp, nil)
	return nil
}

func (w *connectWorld) registered(version string) error {
	w.h.saveApp(w.t, model.PlatformTwitter, model.OAuthVersion(version))
	return nil
}

func (w *connectWorld) startConnecting(userID string) error {
	w.userID = userID
	raw, err := w.oauth.BeginAuthorization(context.Background(), model.PlatformTwitter, userID)
	if err != nil {
		w.err = err
		return nil
	}
	w.authURL, err = url.Parse(raw)
	return err
}

func (w *connectWorld) complete(params model.CallbackParams) error {
	_, w.err = w.oauth.CompleteAuthorization(context.Background(), model.PlatformTwitter, params)
	return nil
}

func (w *connectWorld) issued(name string) (string, error) {
	if w.authURL == nil {
		return "", errors.New("no authorization was started")
	}
	v := w.authURL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("authorization URL has no %s", name)
	}
	return v, nil
}

func (w *connectWorld) redirectWithCode(code string) error {
	state, err := w.issued("state")
	if err != nil {
		return err
	}
	return w.complete(model.CallbackParams{Code: code, State: state})
}

func (w *connectWorld) redirectWithCodeAndState(code, state string) error {
	return w.complete(model.CallbackParams{Code: code, State: state})
}

func (w *connectWorld) redirectWithError(code string) error {
	state, err := w.issued("state")
	if err != nil {
		return err
	}
	return w.complete(model.CallbackParams{Error: code, State: state})
}

func (w *connectWorld) redirectWithVerifier(verifier string) error {
	token, err := w.issued("oauth_token")
	if err != nil {
		return err
	}
	return w.complete(model.CallbackParams{OAuthToken: token, OAuthVerifier: verifier})
}

func (w *connectWorld) succeeds() error {
	if w.err != nil {
		return fmt.Errorf("expected success, got %v", w.err)
	}
	return nil
}

func (w *connectWorld) failsWith(code string) error {
	if w.err == nil {
		return fmt.Errorf("expected %s, got success", code)
	}
	if got := model.ErrorCode(w.err); got != code {
		return fmt.Errorf("expected %s, got %s (%v)", code, got, w.err)
	}
	return nil
}

func (w *connectWorld) connectionIs(userID, status string) error {
	conn, err := w.h.conns.Get(context.Background(), userID, model.PlatformTwitter)
	if err != nil {
		return err
	}
	if string(conn.Status) != status {
		return fmt.Errorf("expected %s, got %s", status, conn.Status)
	}
	if !conn.Status.CarriesTokens() && (conn.AccessToken != "" || conn.TokenSecret != "") {
		return fmt.Errorf("%s connection still holds tokens", conn.Status)
	}
	return nil
}

func (w *connectWorld) connectionIsAs(userID, status, username string) error {
	if err := w.connectionIs(userID, status); err != nil {
		return err
	}
	conn, err := w.h.conns.Get(context.Background(), userID, model.PlatformTwitter)
	if err != nil {
		return err
	}
	if conn.PlatformUsername != username {
		return fmt.Errorf("expected username %s, got %s", username, conn.PlatformUsername)
	}
	return nil
}

func TestOAuthFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			w := &connectWorld{t: t}
			sc.Step(`^a provider sandbox for twitter$`, w.sandbox)
			sc.Step(`^the twitter app is registered with OAuth "([^"]*)"$`, w.registered)
			sc.Step(`^user "([^"]*)" starts connecting twitter$`, w.startConnecting)
			sc.Step(`^the provider redirects back with code "([^"]*)" and the issued state$`, w.redirectWithCode)
			sc.Step(`^the provider redirects back with code "([^"]*)" and state "([^"]*)"$`, w.redirectWithCodeAndState)
			sc.Step(`^the provider redirects back with error "([^"]*)" and the issued state$`, w.redirectWithError)
			sc.Step(`^the provider redirects back with verifier "([^"]*)" for the issued request token$`, w.redirectWithVerifier)
			sc.Step(`^the callback succeeds$`, w.succeeds)
			sc.Step(`^the callback fails with "([^"]*)"$`, w.failsWith)
			sc.Step(`^connecting fails with "([^"]*)"$`, w.failsWith)
			sc.Step(`^the twitter connection of "([^"]*)" is "([^"]*)"$`, w.connectionIs)
			sc.Step(`^the twitter connection of "([^"]*)" is "([^"]*)" as "([^"]*)"$`, w.connectionIsAs)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
