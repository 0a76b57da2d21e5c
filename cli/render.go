package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cameronmore/go-weather/client"
)

func renderWeather(w io.Writer, c *client.Weather) {
	fmt.Fprintf(w, "%s, %s\n", c.City, c.Country)
	fmt.Fprintf(w, "  %d°C (feels like %d°C), %s\n", c.Temperature, c.FeelsLike, c.Description)
	fmt.Fprintf(w, "  Humidity %g%%  Wind %g m/s  Pressure %g hPa  Visibility %g km\n",
		c.Humidity, c.WindSpeed, c.Pressure, c.Visibility)
	if c.Timestamp != "" {
		fmt.Fprintf(w, "  Updated %s\n", c.Timestamp)
	}
}

func renderForecast(w io.Writer, f *client.Forecast) {
	fmt.Fprintf(w, "%s, %s\n", f.City, f.Country)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  TIME\tTEMP\tFEELS\tHUMIDITY\tWIND\tCONDITIONS")
	for _, it := range f.Forecast {
		fmt.Fprintf(tw, "  %s\t%d°C\t%d°C\t%g%%\t%g m/s\t%s\n",
			it.Datetime, it.Temperature, it.FeelsLike, it.Humidity, it.WindSpeed, it.Description)
	}
	_ = tw.Flush()
}

func renderUser(w io.Writer, u *client.User) {
	fmt.Fprintf(w, "%s <%s>\n", u.Username, u.Email)
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  member since %s\n", u.CreatedAt.Format("2006-01-02"))
	}
}
