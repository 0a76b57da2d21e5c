// Package weather fetches current conditions and forecasts from
// OpenWeatherMap and serves them, reshaped, to signed-in users.
package weather

import (
	"errors"
	"math"
	"time"
)

var (
	ErrCityNotFound  = errors.New("city not found")
	ErrNotConfigured = errors.New("weather api key is not configured")
	ErrUpstream      = errors.New("weather upstream error")
)

// Snapshot is the current weather for a city.
type Snapshot struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temperature int     `json:"temperature"`
	FeelsLike   int     `json:"feelsLike"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Pressure    float64 `json:"pressure"`
	// Visibility is in kilometres.
	Visibility float64 `json:"visibility"`
	Timestamp  string  `json:"timestamp"`
}

// ForecastItem is one 3-hour step of a forecast.
type ForecastItem struct {
	Datetime    string  `json:"datetime"`
	Temperature int     `json:"temperature"`
	FeelsLike   int     `json:"feelsLike"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Pressure    float64 `json:"pressure"`
}

type Forecast struct {
	City     string         `json:"city"`
	Country  string         `json:"country"`
	Forecast []ForecastItem `json:"forecast"`
}

// Upstream payloads, reduced to the fields we read.

type owmMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Humidity  float64 `json:"humidity"`
	Pressure  float64 `json:"pressure"`
}

type owmCondition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmWind struct {
	Speed float64 `json:"speed"`
}

type owmCurrent struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main       owmMain        `json:"main"`
	Weather    []owmCondition `json:"weather"`
	Wind       owmWind        `json:"wind"`
	Visibility float64        `json:"visibility"`
}

type owmForecast struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []struct {
		DtTxt   string         `json:"dt_txt"`
		Main    owmMain        `json:"main"`
		Weather []owmCondition `json:"weather"`
		Wind    owmWind        `json:"wind"`
	} `json:"list"`
}

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// roundHalfUp rounds .5 towards positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func firstCondition(cs []owmCondition) (owmCondition, error) {
	if len(cs) == 0 {
		return owmCondition{}, errors.New("missing weather conditions")
	}
	return cs[0], nil
}

func (c owmCurrent) snapshot(now time.Time) (Snapshot, error) {
	cond, err := firstCondition(c.Weather)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		City:        c.Name,
		Country:     c.Sys.Country,
		Temperature: roundHalfUp(c.Main.Temp),
		FeelsLike:   roundHalfUp(c.Main.FeelsLike),
		Description: cond.Description,
		Icon:        cond.Icon,
		Humidity:    c.Main.Humidity,
		WindSpeed:   c.Wind.Speed,
		Pressure:    c.Main.Pressure,
		Visibility:  c.Visibility / 1000,
		Timestamp:   now.UTC().Format(timestampLayout),
	}, nil
}

func (f owmForecast) forecast() (Forecast, error) {
	out := Forecast{
		City:     f.City.Name,
		Country:  f.City.Country,
		Forecast: make([]ForecastItem, 0, len(f.List)),
	}
	for _, item := range f.List {
		cond, err := firstCondition(item.Weather)
		if err != nil {
			return Forecast{}, err
		}
		out.Forecast = append(out.Forecast, ForecastItem{
			Datetime:    item.DtTxt,
			Temperature: roundHalfUp(item.Main.Temp),
			FeelsLike:   roundHalfUp(item.Main.FeelsLike),
			Description: cond.Description,
			Icon:        cond.Icon,
			Humidity:    item.Main.Humidity,
			WindSpeed:   item.Wind.Speed,
			Pressure:    item.Main.Pressure,
		})
	}
	return out, nil
}
