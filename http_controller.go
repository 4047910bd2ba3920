package auth

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

type AuthControllerRoutes struct {
	Register string
	Login    string
	Logout   string
	Me       string
}

// AuthController exposes the credential lifecycle as a JSON API.
type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Config       Config
	Routes       *AuthControllerRoutes
	Auther       Authenticator
	HTTP         *RouteAuthenticator
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register: "/auth/register",
			Login:    "/auth/login",
			Logout:   "/auth/logout",
			Me:       "/auth/me",
		},
	}

	c.ErrorHandler = c.respondError

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerAuther(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerHTTPAuthenticator(http *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.HTTP = http
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// RegisterAuthRoutes mounts the controller. The /auth/me route is guarded by
// the JWT middleware; everything else is public.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")

	app.Post(controller.Routes.Logout, controller.LogOut).
		SetName("auth.logout")

	if controller.HTTP != nil {
		protected := controller.HTTP.ProtectedRoute(
			controller.Config,
			controller.HTTP.MakeClientRouteAuthErrorHandler(false),
		)
		app.Get(controller.Routes.Me, controller.Me, protected).
			SetName("auth.me")
	}
}

// RegisterRequest payload. Limits match the registration DTO: usernames are
// 3+ characters, passwords 6+.
type RegisterRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.Required,
			validation.Length(3, 100),
		),
		validation.Field(
			&r.Email,
			validation.Required,
			validation.Length(6, 100),
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(6, 100),
		),
	)
}

// LoginRequest payload. The identifier is a username or an email; anything
// containing '@' is treated as an email.
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	result, err := a.Auther.Register(ctx.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("register user error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if a.HTTP != nil {
		a.HTTP.setCookieToken(ctx, result.Token, a.HTTP.GetCookieDuration())
	}

	return ctx.JSON(fiber.StatusOK, result)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	var result *AuthResult
	var err error

	if a.HTTP != nil {
		result, err = a.HTTP.Login(ctx, payload.Identifier, payload.Password)
	} else {
		result, err = a.Auther.Login(ctx.Context(), payload.Identifier, payload.Password)
	}

	if err != nil {
		// same body for unknown identifier and wrong password
		return ctx.JSON(fiber.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
	}

	return ctx.JSON(fiber.StatusOK, result)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	if a.HTTP != nil {
		a.HTTP.Logout(ctx)
	}

	// TODO: token blacklisting so logout invalidates outstanding tokens;
	// until then tokens stay valid until their natural expiry
	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

func (a *AuthController) Me(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.Config.GetContextKey())
	if !ok {
		return ctx.JSON(fiber.StatusUnauthorized, map[string]string{
			"error": "invalid or expired token",
		})
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return ctx.JSON(fiber.StatusUnauthorized, map[string]string{
			"error": "invalid or expired token",
		})
	}

	user, err := a.Repo.Users().FindByID(ctx.Context(), id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ctx.JSON(fiber.StatusNotFound, map[string]string{
				"error": "identity not found",
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"created_at":    user.CreatedAt,
		"last_login_at": user.LastLoginAt,
	})
}

// respondError maps categorized errors to HTTP responses: conflicts are 409,
// validation 400, auth failures a uniform 401, everything else 500.
func (a *AuthController) respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryConflict:
			return ctx.JSON(fiber.StatusConflict, map[string]string{
				"error": richErr.Message,
				"code":  richErr.TextCode,
			})
		case goerrors.CategoryValidation:
			return ctx.JSON(fiber.StatusBadRequest, map[string]string{
				"error": richErr.Message,
				"code":  richErr.TextCode,
			})
		case goerrors.CategoryAuth:
			return ctx.JSON(fiber.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}
	}

	return ctx.JSON(fiber.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	if err == nil {
		return out
	}

	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			if fieldErr != nil {
				out[field] = fieldErr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
