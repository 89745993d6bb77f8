package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"video-uploader/constant"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App          App       `yaml:"app"`
	DB           *sql.DB   `yaml:"db"`
	Queue        *RabbitMQ `yaml:"rabbitmq"`
	Storage      Storage   `yaml:"storage"`
	Server       Server    `yaml:"server"`
	Auth         Auth      `yaml:"auth"`
	Webhook      Webhook   `yaml:"webhook"`
	SettingsPath string    `yaml:"settings_path"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
}

type Storage struct {
	Driver    constant.StorageDriver `yaml:"driver"`
	Bucket    string                 `yaml:"bucket"`
	PublicURL string                 `yaml:"public_url"`
	Minio     *minio.Client          `yaml:"-"`
	S3        *s3.Client             `yaml:"-"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type Webhook struct {
	Timeout time.Duration `yaml:"timeout"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	setDefaults()
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		ExchangeName: viper.GetString("rabbitmq_exchange"),
		Kind:         viper.GetString("rabbitmq_kind"),
	}

	storage, err := loadStorage()
	if err != nil {
		return nil, err
	}

	return &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
		},
		Auth: Auth{
			JWTSecret: viper.GetString("auth.jwt_secret"),
			Issuer:    viper.GetString("auth.issuer"),
		},
		Webhook: Webhook{
			Timeout: viper.GetDuration("webhook.timeout"),
		},
		SettingsPath: viper.GetString("settings_path"),
		DB:           db,
		Queue:        rabbitmq,
		Storage:      storage,
	}, nil
}

func setDefaults() {
	viper.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("rabbitmq_exchange", "video_changes_exchange")
	viper.SetDefault("rabbitmq_kind", "topic")
	viper.SetDefault("storage.driver", string(constant.StorageDriverMinio))
	viper.SetDefault("webhook.timeout", "30s")
	viper.SetDefault("settings_path", "settings.yaml")
}

func loadStorage() (Storage, error) {
	storage := Storage{
		Driver:    constant.StorageDriver(viper.GetString("storage.driver")),
		Bucket:    viper.GetString("storage.bucket"),
		PublicURL: viper.GetString("storage.public_url"),
	}

	switch storage.Driver {
	case constant.StorageDriverMinio:
		minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
			Creds:  miniocreds.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: viper.GetBool("minio.secure"),
		})
		if err != nil {
			return Storage{}, err
		}
		storage.Minio = minioClient
	case constant.StorageDriverS3:
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(viper.GetString("s3.region")),
		}
		if key := viper.GetString("s3.access_key_id"); key != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				key, viper.GetString("s3.secret_access_key"), "",
			)))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
		if err != nil {
			return Storage{}, fmt.Errorf("load aws config: %w", err)
		}
		storage.S3 = s3.NewFromConfig(awsCfg)
	default:
		return Storage{}, fmt.Errorf("unknown storage driver %q", storage.Driver)
	}

	return storage, nil
}
