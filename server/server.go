package server

import (
	"net"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/openpolls/api.openpolls.dev/auth"
	"github.com/openpolls/api.openpolls.dev/store"
	"github.com/openpolls/api.openpolls.dev/utils"
	"github.com/openpolls/api.openpolls.dev/voting"

	log "github.com/sirupsen/logrus"
)

// Options carries everything the handlers depend on. The permission table is
// built once at startup and passed here, never read ambiently.
type Options struct {
	ListenerNetwork string
	ListenerAddress string

	AccessTokenKey  string
	RefreshTokenKey string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	Perms *auth.Table
	Store store.Store
}

type Server struct {
	app *fiber.App
	ln  net.Listener
}

type handler struct {
	opts  Options
	locks *voting.Locks
}

type customLogger struct{}

func (*customLogger) Write(data []byte) (n int, err error) {
	log.Debugln(utils.B2S(data))
	return len(data), nil
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func newApp(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Output: &customLogger{},
	}))

	h := &handler{
		opts:  opts,
		locks: voting.NewLocks(),
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", h.signUp)
	authGroup.Post("/signin", h.signIn)
	authGroup.Post("/refreshAccessToken", h.refreshAccessToken)

	polls := app.Group("/polls", h.authenticate)
	polls.Get("/", h.listPolls)
	polls.Post("/", h.addPoll)
	polls.Get("/:id", h.getPoll)
	polls.Put("/:id", h.modifyPoll)
	polls.Patch("/:id/vote", h.vote)
	polls.Patch("/:id", h.updatePoll)
	polls.Delete("/:id", h.deletePoll)

	polls.Get("/:id/comments", h.listComments)
	polls.Post("/:id/comments", h.requireAuth, h.addComment)
	polls.Get("/:pollId/comments/:commentId", h.getComment)
	polls.Put("/:pollId/comments/:commentId", h.modifyComment)
	polls.Patch("/:pollId/comments/:commentId", h.updateComment)
	polls.Delete("/:pollId/comments/:commentId", h.deleteComment)

	users := app.Group("/users", h.authenticate)
	users.Get("/me", h.getMe)
	users.Get("/", h.listUsers)
	users.Get("/:id", h.getUser)
	users.Put("/:id", h.modifyUser)
	users.Patch("/:id", h.updateUser)
	users.Delete("/:id", h.deleteUser)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(formatErrors(notFound("We don't know what you're looking for.")))
	})

	return app
}

func NewServer(opts Options) *Server {
	ln, err := net.Listen(opts.ListenerNetwork, opts.ListenerAddress)
	checkErr(err)

	server := &Server{
		ln:  ln,
		app: newApp(opts),
	}

	go func() {
		if err := server.app.Listener(server.ln); err != nil {
			log.Errorf("failed to start http server, err=%v", err)
		}
	}()

	return server
}

// errorHandler answers every uncaught failure with an opaque server_error.
func errorHandler(c *fiber.Ctx, err error) error {
	log.Errorf("internal err=%v", spew.Sdump(err))

	return c.Status(fiber.StatusInternalServerError).JSON(formatErrors(serverError()))
}

func (s *Server) Shutdown() error {
	return s.ln.Close()
}
