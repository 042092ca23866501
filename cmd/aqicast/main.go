package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"aqicast/internal/api"
	"aqicast/internal/aqi"
	"aqicast/internal/ingest"
	"aqicast/internal/model"
	"aqicast/internal/models"
	"aqicast/internal/predictor"
	"aqicast/internal/store"
)

var defaultCities = []models.City{
	{Name: "Delhi", State: "Delhi", Latitude: 28.61, Longitude: 77.20, Active: true},
	{Name: "Mumbai", State: "Maharashtra", Latitude: 19.07, Longitude: 72.87, Active: true},
	{Name: "Pune", State: "Maharashtra", Latitude: 18.52, Longitude: 73.85, Active: true},
	{Name: "Bengaluru", State: "Karnataka", Latitude: 12.97, Longitude: 77.59, Active: true},
	{Name: "Chennai", State: "Tamil Nadu", Latitude: 13.08, Longitude: 80.27, Active: true},
}

type cli struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,help='Path to .env file to load.'"`

	DB       string `kong:"default='data/aqicast.db',help='Path to SQLite database.'"`
	Port     string `kong:"default='8080',help='HTTP server port.'"`
	APIKey   string `kong:"required,env='DATA_GOV_API_KEY',help='data.gov.in API key.'"`
	ModelURL string `kong:"default='http://localhost:5001',env='MODEL_URL',help='Base URL of the model sidecar.'"`

	SeqLen      int    `kong:"default=5,help='Forecast window length in records.'"`
	WithWeather bool   `kong:"help='Feed weather columns to the forecast model (4-feature windows).'"`
	Imputation  string `kong:"optional,type=existingfile,help='JSON file of per-pollutant imputation means.'"`
	Scaler      string `kong:"optional,type=existingfile,help='JSON min-max scaler artifact for forecast windows.'"`

	Interval time.Duration `kong:"default='1h',help='Interval between scheduled ingest cycles.'"`
	Seed     bool          `kong:"help='Bulk-seed history for every city on the feed, then exit.'"`
	Once     bool          `kong:"help='Run one ingest cycle and exit.'"`
	NoPoll   bool          `kong:"help='Disable the scheduler (server only, for local dev).'"`
}

func main() {
	var flags cli
	kong.Parse(&flags,
		kong.Name("aqicast"),
		kong.Description("AQI prediction service over the CPCB feed."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	for _, city := range defaultCities {
		if err := st.UpsertCity(city); err != nil {
			log.Fatalf("upsert city %s: %v", city.Name, err)
		}
	}
	log.Println("cities seeded")

	imputation := aqi.DefaultImputation()
	if flags.Imputation != "" {
		imputation, err = aqi.LoadImputationTable(flags.Imputation)
		if err != nil {
			log.Fatalf("load imputation table: %v", err)
		}
	}

	var scaler *aqi.MinMaxScaler
	if flags.Scaler != "" {
		scaler, err = aqi.LoadScaler(flags.Scaler)
		if err != nil {
			log.Fatalf("load scaler: %v", err)
		}
	}

	assembler, err := aqi.NewAssembler(flags.SeqLen, flags.WithWeather, scaler)
	if err != nil {
		log.Fatalf("configure forecast windows: %v", err)
	}

	cpcb := ingest.NewCPCBClient(flags.APIKey)
	weather := ingest.NewWeatherClient()
	bridge := model.NewBridge(flags.ModelURL)

	pred := predictor.New(st, cpcb, weather, bridge, imputation, assembler, defaultCities)
	scheduler := ingest.NewScheduler(st, pred, flags.Interval)
	server := api.NewServer(st, pred, bridge, flags.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.Seed {
		log.Println("seeding history from live feed")
		seeder := ingest.NewSeeder(cpcb, pred)
		if err := seeder.Run(ctx); err != nil {
			log.Fatalf("seed: %v", err)
		}
		return
	}

	if flags.Once {
		log.Println("running single ingest cycle")
		scheduler.IngestOnce(ctx)
		log.Println("done")
		return
	}

	if !flags.NoPoll {
		go scheduler.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
