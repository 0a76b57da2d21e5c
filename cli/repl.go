// Package cli is an interactive terminal front end for the weather server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cameronmore/go-weather/client"
)

const helpText = `Commands:
  register [username] [email]  create an account and log in
  login [username]             log in with username or email
  logout                       end the session
  whoami                       show the logged-in user
  current <city>               current weather for a city
  forecast <city>              5-day forecast for a city
  help                         show this help
  exit | quit                  leave the program`

// REPL reads commands line by line and renders the client stores' state.
type REPL struct {
	app *client.App
	in  *input
	out io.Writer

	// fetching is the weather store's last seen IsLoading.
	fetching bool
}

// New returns a REPL over in and out. When in is a terminal, passwords are
// read without echo.
func New(app *client.App, in io.Reader, out io.Writer) *REPL {
	return &REPL{app: app, in: newInput(in, out), out: out}
}

// Run hydrates the session and then loops until EOF, exit, or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	unsubscribe := r.app.Weather.Subscribe(r.weatherChanged)
	defer unsubscribe()

	r.app.Start(ctx)
	fmt.Fprintln(r.out, "Weather CLI. Type help for a list of commands.")
	if u := r.app.Auth.State().User; u != nil {
		fmt.Fprintf(r.out, "Logged in as %s.\n", u.Username)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "weather %s> ", r.status())
		line, err := r.in.line()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		switch cmd {
		case "help", "?":
			fmt.Fprintln(r.out, helpText)
		case "register":
			r.register(ctx, args)
		case "login":
			r.login(ctx, args)
		case "logout":
			r.logout(ctx)
		case "whoami":
			r.whoami()
		case "current":
			r.current(ctx, strings.Join(args, " "))
		case "forecast":
			r.forecast(ctx, strings.Join(args, " "))
		case "exit", "quit":
			fmt.Fprintln(r.out, "Bye!")
			return nil
		default:
			fmt.Fprintf(r.out, "Unknown command: %s\n", cmd)
		}
	}
}

// weatherChanged prints a loading line when a weather request starts.
func (r *REPL) weatherChanged(st client.WeatherState) {
	if st.IsLoading && !r.fetching {
		fmt.Fprintln(r.out, "Fetching weather...")
	}
	r.fetching = st.IsLoading
}

func (r *REPL) status() string {
	if u := r.app.Auth.State().User; u != nil {
		return u.Username
	}
	return "guest"
}

func (r *REPL) printError(msg string) {
	fmt.Fprintf(r.out, "Error: %s\n", msg)
}

// arg returns args[i] or prompts for it.
func (r *REPL) arg(args []string, i int, prompt string) (string, bool) {
	if i < len(args) {
		return args[i], true
	}
	s, err := r.in.text(prompt)
	if err != nil {
		return "", false
	}
	return s, true
}

func (r *REPL) register(ctx context.Context, args []string) {
	username, ok := r.arg(args, 0, "Username: ")
	if !ok {
		return
	}
	email, ok := r.arg(args, 1, "Email: ")
	if !ok {
		return
	}
	password, err := r.in.password("Password: ")
	if err != nil {
		return
	}

	if err := r.app.Auth.Register(ctx, username, email, password); err != nil {
		r.printError(r.app.Auth.State().Error)
		return
	}
	fmt.Fprintf(r.out, "Registered and logged in as %s.\n", r.status())
}

func (r *REPL) login(ctx context.Context, args []string) {
	username, ok := r.arg(args, 0, "Username or email: ")
	if !ok {
		return
	}
	password, err := r.in.password("Password: ")
	if err != nil {
		return
	}

	if err := r.app.Auth.Login(ctx, username, password); err != nil {
		r.printError(r.app.Auth.State().Error)
		return
	}
	fmt.Fprintf(r.out, "Logged in as %s.\n", r.status())
}

func (r *REPL) logout(ctx context.Context) {
	if err := r.app.Logout(ctx); err != nil {
		r.printError(r.app.Auth.State().Error)
		return
	}
	fmt.Fprintln(r.out, "Logged out.")
}

func (r *REPL) whoami() {
	st := r.app.Auth.State()
	if !st.IsAuthenticated || st.User == nil {
		fmt.Fprintln(r.out, "Not logged in.")
		return
	}
	renderUser(r.out, st.User)
}

func (r *REPL) requireLogin() bool {
	if r.app.Auth.State().IsAuthenticated {
		return true
	}
	fmt.Fprintln(r.out, "Please log in first.")
	return false
}

func (r *REPL) current(ctx context.Context, city string) {
	if !r.requireLogin() {
		return
	}
	if err := r.app.Weather.FetchCurrentWeather(ctx, city); err != nil {
		r.printError(r.app.Weather.State().Error)
		return
	}
	if w := r.app.Weather.State().CurrentWeather; w != nil {
		renderWeather(r.out, w)
	}
}

func (r *REPL) forecast(ctx context.Context, city string) {
	if !r.requireLogin() {
		return
	}
	if err := r.app.Weather.FetchForecast(ctx, city); err != nil {
		r.printError(r.app.Weather.State().Error)
		return
	}
	if f := r.app.Weather.State().Forecast; f != nil {
		renderForecast(r.out, f)
	}
}
