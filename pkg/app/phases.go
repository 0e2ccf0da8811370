package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/getmockd/hellotel/pkg/baggage"
	"github.com/getmockd/hellotel/pkg/restapi"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// Baggage keys added by the phases.
const (
	KeySendingNetwork     = "sending_network"
	KeyActivityRestored   = "activity_restored"
	KeyAuthToken          = "auth_token"
	KeyInteractionUUID    = "interaction_uuid"
	KeyInteractionName    = "interaction_name"
	KeyCheckInStarted     = "check_in_started"
	KeyLocationFetched    = "location_fetched"
	KeySessionID          = "session_id"
	KeyDeviceRebootedUUID = "device_rebooted_action_uuid"
)

// KeyInteractiveSession in the saved state marks a restored session.
const KeyInteractiveSession = "interactive_session_uuid"

// Check-in span and its events.
const (
	SpanCheckIn          = "check_in"
	EventStartCheckingIn = "start_checking_in"
	EventFinishedCheckIn = "finished_checking_in"
)

const (
	fixedAuthToken    = "fixed_auth_token_value"
	checkOutSessionID = "test_session_id"
	ignoredSessionID  = "ignored_session_id"
)

// Token returns the token stored by the last successful Auth.
func (a *App) Token() string {
	a.tokenMu.RLock()
	defer a.tokenMu.RUnlock()
	return a.token
}

func (a *App) setToken(t string) {
	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()
	a.token = t
}

func (a *App) nowMs() string {
	return strconv.FormatInt(a.now().UnixMilli(), 10)
}

func (a *App) coldLaunchData() restapi.ColdLaunchData {
	id := a.ColdLaunch()
	return restapi.ColdLaunchData{ColdLaunchUUID: id.ID.String(), TimeMs: id.CreatedAtMs}
}

// withBaggage derives a Context from c whose baggage has pairs added.
func withBaggage(c tracing.Context, pairs ...string) tracing.Context {
	b := c.Baggage()
	for i := 0; i+1 < len(pairs); i += 2 {
		b = b.Put(pairs[i], pairs[i+1])
	}
	return c.WithBaggage(b)
}

// NotifyAppLaunch reports the cold launch to the backend.
func (a *App) NotifyAppLaunch(ctx context.Context) (restapi.StatusResult, error) {
	c := withBaggage(a.RootContext(), KeySendingNetwork, a.nowMs())

	var res restapi.StatusResult
	err := tracing.NewFlow().Within(c, func(c tracing.Context) (err error) {
		res, err = a.api.AppLaunch(ctx, c, a.coldLaunchData(), a.Token())
		return err
	})
	if err != nil {
		return res, fmt.Errorf("app launch: %w", err)
	}
	return res, nil
}

// NotifyBecomingInteractive reports that the first screen is interactive.
// savedState is the state restored from a previous session, if any.
func (a *App) NotifyBecomingInteractive(ctx context.Context, savedState map[string]string) (restapi.StatusResult, error) {
	restored := savedState[KeyInteractiveSession] != ""
	c := withBaggage(a.RootContext(), KeyActivityRestored, strconv.FormatBool(restored))

	data := restapi.BecomeInteractiveData{SavedState: savedState, ColdLaunch: a.coldLaunchData()}

	var res restapi.StatusResult
	err := tracing.NewFlow().Within(c, func(c tracing.Context) (err error) {
		res, err = a.api.BecomeInteractive(ctx, c, data)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("become interactive: %w", err)
	}
	return res, nil
}

// Auth logs in and stores the returned token. With success false the backend
// rejects the request.
func (a *App) Auth(ctx context.Context, success bool) (restapi.UserToken, error) {
	c := withBaggage(a.RootContext(), KeyAuthToken, fixedAuthToken)

	var tok restapi.UserToken
	err := tracing.NewFlow().Within(c, func(c tracing.Context) (err error) {
		tok, err = a.api.LogIn(ctx, c, success)
		return err
	})
	if err != nil {
		return tok, fmt.Errorf("auth: %w", err)
	}
	a.setToken(tok.Token)
	return tok, nil
}

// AuthedContext returns the root context with the stored token and a fresh
// interaction id added to its baggage.
func (a *App) AuthedContext(interaction string) tracing.Context {
	return withBaggage(a.RootContext(),
		KeyAuthToken, a.Token(),
		KeyInteractionUUID, uuid.NewString(),
		KeyInteractionName, interaction,
	)
}

// CheckIn sends locations inside a check_in span. The baggage records when
// the check-in started, when locations were fetched and when the request was
// sent.
func (a *App) CheckIn(ctx context.Context, interaction string, locations restapi.LocationModel) (restapi.StatusResult, error) {
	started := withBaggage(a.AuthedContext(interaction), KeyCheckInStarted, a.nowMs())
	fetched := withBaggage(started, KeyLocationFetched, a.nowMs())

	span := a.tracer.Start(fetched, SpanCheckIn)
	defer span.End()
	_ = span.AddEvent(EventStartCheckingIn)

	c := withBaggage(fetched.WithSpan(span), KeySendingNetwork, a.nowMs())

	var res restapi.StatusResult
	err := tracing.NewFlow().Within(c, func(c tracing.Context) (err error) {
		res, err = a.api.CheckIn(ctx, c, locations, a.Token())
		return err
	})
	if err != nil {
		_ = span.SetStatus(tracing.StatusError, err.Error())
		return res, fmt.Errorf("check in: %w", err)
	}
	_ = span.AddEvent(EventFinishedCheckIn)
	return res, nil
}

// CheckOut checks the user out. The caller's flow first holds baggage for a
// named user. With sendBaggage the request runs in that flow under fresh
// baggage carrying a session id. Otherwise it runs on another goroutine,
// whose flow never saw the caller's contexts, so no baggage is sent.
func (a *App) CheckOut(ctx context.Context, sendBaggage bool) (restapi.StatusResult, error) {
	flow := tracing.NewFlow()
	scope := flow.Activate(flow.Current().WithBaggage(baggage.New("user.name", "tony", "user.id", "321")))
	defer func() { _ = scope.Close() }()

	var res restapi.StatusResult
	var err error
	if sendBaggage {
		session := flow.Current().WithBaggage(baggage.New(KeySessionID, checkOutSessionID))
		err = flow.Within(session, func(c tracing.Context) (err error) {
			res, err = a.api.CheckOut(ctx, c)
			return err
		})
	} else {
		inner := flow.Activate(flow.Current().WithBaggage(baggage.New(KeySessionID, ignoredSessionID)))
		done := make(chan struct{})
		go func() {
			defer close(done)
			worker := tracing.NewFlow()
			res, err = a.api.CheckOut(ctx, worker.Current())
		}()
		<-done
		_ = inner.Close()
	}
	if err != nil {
		return res, fmt.Errorf("check out: %w", err)
	}
	return res, nil
}

// DeviceRebooted reports a device reboot observed with action.
func (a *App) DeviceRebooted(ctx context.Context, action string) (restapi.StatusResult, error) {
	c := withBaggage(a.RootContext(), KeyDeviceRebootedUUID, uuid.NewString())
	data := restapi.DeviceRebootedData{
		RebootTimeMs: a.now().UnixMilli(),
		Action:       action,
		ColdLaunch:   a.coldLaunchData(),
	}

	var res restapi.StatusResult
	err := tracing.NewFlow().Within(c, func(c tracing.Context) (err error) {
		res, err = a.api.DeviceRebooted(ctx, c, data)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("device rebooted: %w", err)
	}
	return res, nil
}

// LogOut logs out and forgets the stored token.
func (a *App) LogOut(ctx context.Context) (restapi.LogOutStatus, error) {
	var res restapi.LogOutStatus
	err := tracing.NewFlow().Within(a.RootContext(), func(c tracing.Context) (err error) {
		res, err = a.api.LogOut(ctx, c)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("log out: %w", err)
	}
	a.setToken("")
	return res, nil
}
