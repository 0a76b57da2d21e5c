package client

import "context"

// App is the client-side state container handed to a front end.
type App struct {
	API     *API
	Auth    *AuthStore
	Weather *WeatherStore
}

func NewApp(api *API) *App {
	return &App{
		API:     api,
		Auth:    NewAuthStore(api),
		Weather: NewWeatherStore(api),
	}
}

// Start hydrates the auth state. Front ends should show a loading state until
// it returns.
func (a *App) Start(ctx context.Context) {
	a.Auth.CheckAuth(ctx)
}

// Logout ends the session and drops the previous user's weather results.
func (a *App) Logout(ctx context.Context) error {
	err := a.Auth.Logout(ctx)
	a.Weather.ClearWeatherData()
	return err
}
