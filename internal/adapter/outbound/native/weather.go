package native

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// WeatherConfig holds the OpenWeather credentials.
type WeatherConfig struct {
	APIKey  string
	BaseURL string // defaults to https://api.openweathermap.org
}

// coordinates is the typed argument model of the weather tools.
type coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

var coordinatesModel = domain.JSONSchemaProps{
	Type:  "object",
	Title: "GetWeatherArgs",
	Properties: map[string]domain.JSONSchemaProps{
		"lat": {Type: "number", Title: "Lat", Description: "Latitude"},
		"lon": {Type: "number", Title: "Lon", Description: "Longitude"},
	},
	Required: []string{"lat", "lon"},
}

type owCondition struct {
	Description string `json:"description"`
}

type owMain struct {
	Temp     float64 `json:"temp"`
	Humidity float64 `json:"humidity"`
}

type owCurrent struct {
	Name    string        `json:"name"`
	Weather []owCondition `json:"weather"`
	Main    owMain        `json:"main"`
}

type owForecast struct {
	List []struct {
		DtTxt   string        `json:"dt_txt"`
		Weather []owCondition `json:"weather"`
		Main    owMain        `json:"main"`
	} `json:"list"`
}

// HourlyForecast is one entry of get_hourly_forecast's result.
type HourlyForecast struct {
	Time         string  `json:"time"`
	Description  string  `json:"description"`
	TemperatureC float64 `json:"temperature_c"`
	Humidity     float64 `json:"humidity"`
}

type weatherTools struct {
	invoker *httpinvoker.Invoker
	cfg     WeatherConfig
	logger  *slog.Logger
}

// WeatherTools returns get_weather_forecast and get_hourly_forecast.
func WeatherTools(invoker *httpinvoker.Invoker, cfg WeatherConfig, logger *slog.Logger) []Tool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openweathermap.org"
	}
	w := &weatherTools{invoker: invoker, cfg: cfg, logger: logger.With("component", "weather_tools")}
	model := coordinatesModel
	return []Tool{
		{
			Name:        "get_weather_forecast",
			Description: "Fetches the current weather for a specified location.",
			Group:       usecase.NativeGroupUtility,
			Signature:   &domain.Signature{Model: &model},
			Func:        w.current,
		},
		{
			Name:        "get_hourly_forecast",
			Description: "Fetches the forecast in three hour steps for a specified location.",
			Group:       usecase.NativeGroupUtility,
			Signature:   &domain.Signature{Model: &model},
			Func:        w.hourly,
		},
	}
}

func kelvinToCelsius(k float64) float64 {
	return math.Round((k-273.15)*100) / 100
}

func (w *weatherTools) get(ctx context.Context, endpoint string, c coordinates, out interface{}) error {
	if w.cfg.APIKey == "" {
		return fmt.Errorf("OpenWeather API key is not configured: %w", usecase.ErrMissingCredentials)
	}
	err := w.invoker.DoInto(ctx, httpinvoker.Request{
		Method:  http.MethodGet,
		BaseURL: w.cfg.BaseURL,
		Path:    endpoint,
		Args:    map[string]interface{}{"lat": c.Lat, "lon": c.Lon, "appid": w.cfg.APIKey},
		ArgsIn:  httpinvoker.ArgsInQuery,
	}, out)
	if err != nil {
		return fmt.Errorf("OpenWeather request failed: %w", err)
	}
	return nil
}

func (w *weatherTools) current(ctx context.Context, in Input) (interface{}, error) {
	c, err := Decode[coordinates](in.Args)
	if err != nil {
		return nil, err
	}
	var data owCurrent
	if err := w.get(ctx, "/data/2.5/weather", c, &data); err != nil {
		return nil, err
	}
	description := "unknown"
	if len(data.Weather) > 0 {
		description = data.Weather[0].Description
	}
	return fmt.Sprintf("Current weather: %s, temperature: %.2f°C", description, kelvinToCelsius(data.Main.Temp)), nil
}

func (w *weatherTools) hourly(ctx context.Context, in Input) (interface{}, error) {
	c, err := Decode[coordinates](in.Args)
	if err != nil {
		return nil, err
	}
	var data owForecast
	if err := w.get(ctx, "/data/2.5/forecast", c, &data); err != nil {
		return nil, err
	}
	out := make([]HourlyForecast, 0, len(data.List))
	for _, item := range data.List {
		f := HourlyForecast{
			Time:         item.DtTxt,
			TemperatureC: kelvinToCelsius(item.Main.Temp),
			Humidity:     item.Main.Humidity,
		}
		if len(item.Weather) > 0 {
			f.Description = item.Weather[0].Description
		}
		out = append(out, f)
	}
	w.logger.Debug("Fetched hourly forecast", slog.Int("entries", len(out)))
	return out, nil
}
