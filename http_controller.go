package signup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"go.opentelemetry.io/otel/trace"
)

// SessionBackend is the session side the HTTP layer needs
type SessionBackend interface {
	SessionCreator
	SessionResolver
	Revoke(ctx context.Context, token string) error
}

func RegisterSignupRoutes[T any](app router.Router[T], opts ...HTTPControllerOption) *HTTPController {
	controller := NewHTTPController(opts...)

	app.Get(controller.Routes.Home, controller.Home).
		SetName("home.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")
	app.Get(controller.Routes.RegisterStatus, controller.RegistrationStatus).
		SetName("register-status.get")

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.get")

	app.Post(fmt.Sprintf("%s/:id/comments", controller.Routes.Posts), controller.CommentCreate).
		SetName("comment.post")

	return controller
}

type HTTPControllerRoutes struct {
	Home           string
	Login          string
	Logout         string
	Register       string
	RegisterStatus string
	Posts          string
}

type HTTPControllerViews struct {
	Home     string
	Login    string
	Register string
}

type HTTPController struct {
	Debug    bool
	Logger   Logger
	Config   Config
	Accounts AccountProvisioner
	Sessions SessionBackend
	Comments CommentStore
	Clients  *ClientRegistry
	Limiter  *SubmissionLimiter
	Metrics  *Metrics
	Activity ActivitySink
	Tracer   trace.Tracer
	Routes   *HTTPControllerRoutes
	Views    *HTTPControllerViews
}

type HTTPControllerOption func(*HTTPController) *HTTPController

func WithHTTPConfig(cfg Config) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Config = cfg
		return c
	}
}

func WithHTTPBackends(accounts AccountProvisioner, sessions SessionBackend, comments CommentStore) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Accounts = accounts
		c.Sessions = sessions
		c.Comments = comments
		return c
	}
}

func WithHTTPLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithHTTPMetrics(m *Metrics) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Metrics = m
		return c
	}
}

func WithHTTPActivitySink(sink ActivitySink) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Activity = sink
		return c
	}
}

func WithHTTPTracer(tracer trace.Tracer) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Tracer = tracer
		return c
	}
}

func WithHTTPClients(clients *ClientRegistry) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Clients = clients
		return c
	}
}

func WithHTTPLimiter(limiter *SubmissionLimiter) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Limiter = limiter
		return c
	}
}

func WithHTTPDebug(debug bool) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Debug = debug
		return c
	}
}

func NewHTTPController(opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Logger: defLogger{},
		Config: DefaultOptions(),
		Routes: &HTTPControllerRoutes{
			Home:           "/",
			Login:          "/login",
			Logout:         "/logout",
			Register:       "/register",
			RegisterStatus: "/register/status",
			Posts:          "/posts",
		},
		Views: &HTTPControllerViews{
			Home:     "index",
			Login:    "login",
			Register: "register",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Accounts == nil || c.Sessions == nil {
		panic("Missing account or session backend in signup controller...")
	}

	if c.Clients == nil {
		c.Clients = NewClientRegistry(c.Sessions, 0, c.Logger)
	}

	if c.Limiter == nil {
		c.Limiter = NewSubmissionLimiter(c.Config.GetSubmissionRate(), c.Config.GetSubmissionBurst(), 0)
	}

	return c
}

// formResponse is the transport independent result of a handler
type formResponse struct {
	status   int
	view     string
	redirect string
	data     router.ViewContext
	flash    router.ViewContext
	failed   bool
}

func (h *HTTPController) controllerOptions(client *ClientState) []ControllerOption {
	opts := []ControllerOption{
		WithConfig(h.Config),
		WithLogger(h.Logger),
		WithMetrics(h.Metrics),
		WithActivitySink(h.Activity),
		WithPendingFlags(&client.AccountPending, &client.SessionPending),
	}
	if h.Tracer != nil {
		opts = append(opts, WithTracer(h.Tracer))
	}
	return opts
}

// client returns the tracked state of the caller, tracking it if new.
// Only submissions call it.
func (h *HTTPController) client(c router.Context) *ClientState {
	return h.Clients.Get(
		c.Cookies(h.Config.GetClientKey()),
		c.Cookies(h.Config.GetContextKey()),
	)
}

// visitor is client for read only routes
func (h *HTTPController) visitor(c router.Context) *ClientState {
	return h.Clients.Lookup(
		c.Cookies(h.Config.GetClientKey()),
		c.Cookies(h.Config.GetContextKey()),
	)
}

func (h *HTTPController) limited(ctx context.Context, flow, key string) bool {
	if h.Limiter.Allow(key, time.Now()) {
		return false
	}
	h.Metrics.ObserveRateLimited(flow)
	if h.Activity != nil {
		_ = h.Activity.Record(ctx, ActivityEvent{
			EventType:  ActivityEventSubmissionLimited,
			Outcome:    flow,
			OccurredAt: time.Now(),
			Metadata:   map[string]any{"key": key},
		})
	}
	h.Logger.Warn("%s submission rate limited for %s", flow, key)
	return true
}

// limiterKey is the peer address set by RemoteAddr, or the client ID
// when the middleware is not installed
func (h *HTTPController) limiterKey(c router.Context, client *ClientState) string {
	if addr, ok := c.Locals(RemoteAddrLocal).(string); ok && addr != "" {
		return addr
	}
	return client.ID
}

// authenticate exposes the client's user to the rest of the request,
// in the router locals and in the request context
func (h *HTTPController) authenticate(c router.Context, client *ClientState) {
	user := h.currentUser(c.Context(), client)
	if user == nil {
		return
	}
	c.Locals(h.Config.GetContextKey(), user)
	c.SetContext(WithContext(c.Context(), user))
}

// currentUser refreshes the client's user when it holds a token but no
// user yet. The store decides whether a rejected token is dropped.
func (h *HTTPController) currentUser(ctx context.Context, client *ClientState) *User {
	store := client.Store
	if user := store.CurrentUser(); user != nil || store.Token() == "" {
		return user
	}
	if _, err := store.CheckAuthUser(ctx); err != nil {
		h.Logger.Warn("session check for client %s: %v", client.ID, err)
	}
	return store.CurrentUser()
}

func (h *HTTPController) Home(c router.Context) error {
	client := h.visitor(c)
	tokenBefore := client.Store.Token()

	h.authenticate(c, client)
	user, _ := GetRouterUser(c, h.Config.GetContextKey())

	h.writeCookies(c, client, tokenBefore)
	return c.Render(h.Views.Home, router.ViewContext{
		"user": user,
	})
}

func (h *HTTPController) RegistrationShow(c router.Context) error {
	client := h.visitor(c)
	h.writeCookies(c, client, client.Store.Token())
	return c.Render(h.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": SubmissionInput{},
	})
}

// RegistrationPayload is the signup form
type RegistrationPayload struct {
	Name            string `form:"name" json:"name"`
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Input drops the confirmation field
func (r RegistrationPayload) Input() SubmissionInput {
	return SubmissionInput{
		Name:     r.Name,
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
	}
}

// Validate will validate the payload
func (r RegistrationPayload) Validate() error {
	if err := r.Input().Validate(); err != nil {
		return err
	}
	if r.ConfirmPassword == "" {
		return nil
	}
	return ValidateStringEquals(r.Password)(r.ConfirmPassword)
}

func (h *HTTPController) RegistrationCreate(c router.Context) error {
	client := h.client(c)
	tokenBefore := client.Store.Token()

	payload := new(RegistrationPayload)
	if err := c.Bind(payload); err != nil {
		h.Logger.Error("register user parse payload: %v", err)
		return h.apply(c, client, tokenBefore, badRequest(h.Views.Register, payload.Input(), err))
	}

	res := h.register(c.Context(), client, h.limiterKey(c, client), *payload)
	return h.apply(c, client, tokenBefore, res)
}

func (h *HTTPController) register(ctx context.Context, client *ClientState, key string, payload RegistrationPayload) formResponse {
	input := payload.Input()

	if h.limited(ctx, flowSignup, key) {
		return rateLimited(h.Views.Register, redactInput(input), GenericRetryMessage)
	}

	if err := payload.Validate(); err != nil {
		h.Logger.Debug("register user validate payload: %v", err)
		return invalid(h.Views.Register, redactInput(input), err)
	}

	if h.Debug {
		fmt.Println("======= SIGNUP REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(redactInput(input)))
		fmt.Println("==============================")
	}

	rec := &Recorder{}
	controller := NewSignupController(
		h.Accounts,
		client.Store.Bind(h.Sessions),
		client.Store,
		rec,
		rec,
		h.controllerOptions(client)...,
	)

	outcome := controller.Submit(ctx, input)

	return h.settle(rec, h.Views.Register, redactInput(controller.Form().Values()), outcome.String())
}

// RegistrationStatus reports the busy flag of the calling client
func (h *HTTPController) RegistrationStatus(c router.Context) error {
	client := h.visitor(c)
	state := client.BusyState()
	return c.JSON(http.StatusOK, map[string]any{
		"busy":            state.Busy(),
		"account_pending": state.AccountPending,
		"session_pending": state.SessionPending,
		"session_loading": state.SessionLoading,
	})
}

func (h *HTTPController) LoginShow(c router.Context) error {
	client := h.visitor(c)
	h.writeCookies(c, client, client.Store.Token())
	return c.Render(h.Views.Login, router.ViewContext{
		"errors": map[string]string{},
		"record": Credentials{},
	})
}

func (h *HTTPController) LoginPost(c router.Context) error {
	client := h.client(c)
	tokenBefore := client.Store.Token()

	payload := new(Credentials)
	if err := c.Bind(payload); err != nil {
		h.Logger.Error("login parse payload: %v", err)
		return h.apply(c, client, tokenBefore, badRequest(h.Views.Login, Credentials{Email: payload.Email}, err))
	}

	res := h.login(c.Context(), client, h.limiterKey(c, client), *payload)
	return h.apply(c, client, tokenBefore, res)
}

func (h *HTTPController) login(ctx context.Context, client *ClientState, key string, creds Credentials) formResponse {
	record := Credentials{Email: creds.Email}

	if h.limited(ctx, flowSignin, key) {
		return rateLimited(h.Views.Login, record, SigninRetryMessage)
	}

	if err := creds.Validate(); err != nil {
		return invalid(h.Views.Login, record, err)
	}

	rec := &Recorder{}
	controller := NewSigninController(
		client.Store.Bind(h.Sessions),
		client.Store,
		rec,
		rec,
		h.controllerOptions(client)...,
	)

	outcome := controller.Submit(ctx, creds)

	return h.settle(rec, h.Views.Login, Credentials{Email: controller.Form().Values().Email}, outcome.String())
}

func (h *HTTPController) LogOut(c router.Context) error {
	client := h.visitor(c)
	h.logout(c.Context(), client)
	setCookie(c, h.Config.GetClientKey(), client.ID, h.Clients.TTL())
	cookieDel(c, h.Config.GetContextKey())
	return c.Redirect(h.Routes.Home, router.StatusTemporaryRedirect)
}

func (h *HTTPController) logout(ctx context.Context, client *ClientState) {
	if token := client.Store.Token(); token != "" {
		if err := h.Sessions.Revoke(ctx, token); err != nil {
			h.Logger.Error("logout revoke session: %v", err)
		}
	}
	client.Store.Clear()
}

// CommentPayload is the comment form
type CommentPayload struct {
	Comment string `form:"comment" json:"comment"`
}

func (h *HTTPController) CommentCreate(c router.Context) error {
	client := h.client(c)
	tokenBefore := client.Store.Token()

	payload := new(CommentPayload)
	if err := c.Bind(payload); err != nil {
		h.Logger.Error("comment parse payload: %v", err)
		return h.apply(c, client, tokenBefore, formResponse{
			redirect: h.Routes.Home,
			failed:   true,
			flash:    router.ViewContext{"system_message": CommentRetryMessage},
		})
	}

	h.authenticate(c, client)
	res := h.comment(c.Context(), client, h.limiterKey(c, client), c.Param("id"), payload.Comment)
	return h.apply(c, client, tokenBefore, res)
}

func (h *HTTPController) comment(ctx context.Context, client *ClientState, key, postID, body string) formResponse {
	if h.Comments == nil {
		return formResponse{
			redirect: h.Routes.Home,
			failed:   true,
			flash:    router.ViewContext{"system_message": CommentRetryMessage},
		}
	}

	user, ok := FromContext(ctx)
	if !ok {
		user = h.currentUser(ctx, client)
	}
	if user == nil {
		return formResponse{
			redirect: h.Routes.Login,
			failed:   true,
			flash:    router.ViewContext{"system_message": "Sign in to comment."},
		}
	}

	if h.limited(ctx, flowComment, key) {
		return formResponse{
			redirect: h.Routes.Home,
			failed:   true,
			flash:    router.ViewContext{"system_message": CommentRetryMessage},
		}
	}

	input := CommentInput{
		Author: user.ID.String(),
		Post:   postID,
		Body:   body,
	}

	if err := input.Validate(); err != nil {
		return formResponse{
			redirect: h.Routes.Home,
			failed:   true,
			flash: router.ViewContext{
				"system_message": CommentRetryMessage,
				"validation":     FormatValidationErrorToMap(err),
			},
		}
	}

	rec := &Recorder{}
	controller := NewCommentController(h.Comments, rec, rec, h.controllerOptions(client)...)
	res := controller.Submit(ctx, input)

	outcome := "success"
	if !res.OK() {
		outcome = "failed"
	}

	return h.settle(rec, h.Views.Home, router.ViewContext{"post": postID}, outcome)
}

// settle turns what a workflow recorded into a response. Navigation
// becomes a redirect, a notification becomes an error flash.
func (h *HTTPController) settle(rec *Recorder, view string, record any, outcome string) formResponse {
	note, notified := rec.LastNotification()
	path, navigated := rec.LastPath()

	res := formResponse{
		view: view,
		data: router.ViewContext{
			"record":  record,
			"outcome": outcome,
		},
	}

	if notified {
		res.failed = true
		res.flash = router.ViewContext{"system_message": note.Title}
		res.data["errors"] = map[string]string{"form": note.Title}
	} else {
		res.flash = router.ViewContext{"system_message": "Success"}
	}

	if navigated {
		res.redirect = path
	}

	return res
}

func (h *HTTPController) apply(c router.Context, client *ClientState, tokenBefore string, res formResponse) error {
	h.writeCookies(c, client, tokenBefore)

	if res.redirect != "" {
		if res.failed {
			return flash.WithError(c, res.flash).Redirect(res.redirect, router.StatusSeeOther)
		}
		return flash.WithSuccess(c, res.flash).Redirect(res.redirect, router.StatusSeeOther)
	}

	if !res.failed {
		return c.Render(res.view, res.data)
	}

	if res.status != 0 {
		return flash.WithError(c, res.flash).Status(res.status).Render(res.view, res.data)
	}
	return flash.WithError(c, res.flash).Render(res.view, res.data)
}

// writeCookies keeps the client and session cookies in line with the
// client state
func (h *HTTPController) writeCookies(c router.Context, client *ClientState, tokenBefore string) {
	setCookie(c, h.Config.GetClientKey(), client.ID, h.Clients.TTL())

	token := client.Store.Token()
	if token == tokenBefore {
		return
	}
	if token == "" {
		cookieDel(c, h.Config.GetContextKey())
		return
	}
	setCookie(c, h.Config.GetContextKey(), token, h.tokenDuration())
}

func (h *HTTPController) tokenDuration() time.Duration {
	return time.Duration(h.Config.GetTokenExpiration()) * time.Hour
}

func badRequest(view string, record any, err error) formResponse {
	return formResponse{
		status: http.StatusBadRequest,
		view:   view,
		failed: true,
		data: router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": record,
		},
		flash: router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		},
	}
}

func invalid(view string, record any, err error) formResponse {
	return formResponse{
		status: http.StatusUnprocessableEntity,
		view:   view,
		failed: true,
		data: router.ViewContext{
			"record":     record,
			"validation": FormatValidationErrorToMap(err),
		},
		flash: router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		},
	}
}

func rateLimited(view string, record any, message string) formResponse {
	return formResponse{
		status: http.StatusTooManyRequests,
		view:   view,
		failed: true,
		data: router.ViewContext{
			"record": record,
			"errors": map[string]string{"form": message},
		},
		flash: router.ViewContext{
			"system_message": message,
			"error_code":     ErrRateLimited.TextCode,
		},
	}
}

func redactInput(input SubmissionInput) SubmissionInput {
	input.Password = ""
	return input
}
