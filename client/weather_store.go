package client

import (
	"context"
	"errors"
	"strings"
	"sync"
)

const cityRequiredMessage = "City name is required"

// ErrCityRequired is returned for a blank city; no request is made.
var ErrCityRequired = errors.New("city name is required")

type WeatherState struct {
	CurrentWeather *Weather
	Forecast       *Forecast
	IsLoading      bool
	Error          string
	SelectedCity   string
}

// WeatherStore holds the last fetched current weather and forecast. When
// searches overlap, only the most recently started request of each kind may
// update its slice.
type WeatherStore struct {
	api  *API
	subs subscribers[WeatherState]

	mu          sync.Mutex
	state       WeatherState
	inFlight    int
	currentSeq  uint64
	forecastSeq uint64
}

func NewWeatherStore(api *API) *WeatherStore {
	return &WeatherStore{api: api}
}

func (s *WeatherStore) State() WeatherState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *WeatherStore) Subscribe(fn func(WeatherState)) func() {
	return s.subs.add(fn)
}

func (s *WeatherStore) update(fn func(st *WeatherState)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	s.mu.Unlock()
	s.subs.notify(snapshot)
}

// begin records a new in-flight request and returns its sequence number.
func (s *WeatherStore) begin(seq *uint64) uint64 {
	var n uint64
	s.update(func(st *WeatherState) {
		*seq++
		n = *seq
		s.inFlight++
		st.IsLoading = true
		st.Error = ""
	})
	return n
}

// finish applies fn unless a newer request of the same kind has started.
func (s *WeatherStore) finish(seq *uint64, n uint64, fn func(st *WeatherState)) {
	s.update(func(st *WeatherState) {
		s.inFlight--
		st.IsLoading = s.inFlight > 0
		if *seq != n {
			return
		}
		fn(st)
	})
}

func (s *WeatherStore) cityRequired() error {
	s.update(func(st *WeatherState) { st.Error = cityRequiredMessage })
	return ErrCityRequired
}

func (s *WeatherStore) FetchCurrentWeather(ctx context.Context, city string) error {
	if strings.TrimSpace(city) == "" {
		return s.cityRequired()
	}

	n := s.begin(&s.currentSeq)
	w, err := s.api.CurrentWeather(ctx, city)
	s.finish(&s.currentSeq, n, func(st *WeatherState) {
		if err != nil {
			st.CurrentWeather = nil
			st.Error = UserMessage(err, "Failed to fetch weather data")
			return
		}
		st.CurrentWeather = &w
		st.Error = ""
		st.SelectedCity = city
	})
	return err
}

func (s *WeatherStore) FetchForecast(ctx context.Context, city string) error {
	if strings.TrimSpace(city) == "" {
		return s.cityRequired()
	}

	n := s.begin(&s.forecastSeq)
	f, err := s.api.Forecast(ctx, city)
	s.finish(&s.forecastSeq, n, func(st *WeatherState) {
		if err != nil {
			st.Forecast = nil
			st.Error = UserMessage(err, "Failed to fetch forecast data")
			return
		}
		st.Forecast = &f
		st.Error = ""
		st.SelectedCity = city
	})
	return err
}

// ClearWeatherData resets the results. Responses still in flight are
// discarded when they arrive.
func (s *WeatherStore) ClearWeatherData() {
	s.update(func(st *WeatherState) {
		s.currentSeq++
		s.forecastSeq++
		st.CurrentWeather = nil
		st.Forecast = nil
		st.Error = ""
		st.SelectedCity = ""
	})
}

func (s *WeatherStore) ClearError() {
	s.update(func(st *WeatherState) { st.Error = "" })
}

func (s *WeatherStore) SetSelectedCity(city string) {
	s.update(func(st *WeatherState) { st.SelectedCity = city })
}
