package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/annel0/backinv/internal/snapshot"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath - путь к документу конфигурации относительно рабочего каталога сервера.
const DefaultPath = "config/backinv.yml"

// Config корневая структура конфигурации плагина.
// Значение неизменяемо после загрузки: перезагрузка создаёт новый *Config
// и подменяет ссылку в Holder.
type Config struct {
	// Enabled включает снятие снапшотов при смерти игрока.
	Enabled  bool `yaml:"enabled" env:"BACKINV_ENABLED"`
	Messages `yaml:",inline"`

	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// Messages - шаблоны всех сообщений, которые видят игроки и операторы.
// Плейсхолдеры: {player}, {file}, {index}, {save}, {action}, {e}.
type Messages struct {
	Prefix          string `yaml:"prefix"`
	Suffix          string `yaml:"suffix"`
	ReJoin          string `yaml:"reJoin"`
	LoadPlayer      string `yaml:"loadPlayer"`
	ErrorLoadPlayer string `yaml:"errorLoadPlayer"`
	ItemPrefix      string `yaml:"itemPrefix"`
	ItemSuffix      string `yaml:"itemSuffix"`
	NoSavesFound    string `yaml:"no_saves_found"`
	InvalidIndex    string `yaml:"invalid_index"`
	SaveNotFound    string `yaml:"save_not_found"`
	ErrorOccurred   string `yaml:"error_occurred"`
	PlayerNotOnline string `yaml:"player_not_online"`
	InvalidPlayer   string `yaml:"invalid_player"`
	NoPermission    string `yaml:"no_permission"`
}

// StorageConfig выбирает бэкенд хранилища снапшотов
type StorageConfig struct {
	Backend        string `yaml:"backend" env:"BACKINV_STORAGE_BACKEND"` // file | badger | redis | memory
	Root           string `yaml:"root" env:"BACKINV_STORAGE_ROOT"`
	Extension      string `yaml:"extension" env:"BACKINV_STORAGE_EXTENSION"`
	BadgerPath     string `yaml:"badger_path" env:"BACKINV_BADGER_PATH"`
	RedisAddr      string `yaml:"redis_addr" env:"BACKINV_REDIS_ADDR"`
	RedisPassword  string `yaml:"redis_password" env:"BACKINV_REDIS_PASSWORD"`
	RedisDB        int    `yaml:"redis_db" env:"BACKINV_REDIS_DB"`
	RedisKeyPrefix string `yaml:"redis_key_prefix" env:"BACKINV_REDIS_KEY_PREFIX"`
	Compress       bool   `yaml:"compress" env:"BACKINV_STORAGE_COMPRESS"` // zstd для badger/redis
}

// EventBusConfig настраивает доставку событий смерти
type EventBusConfig struct {
	Mode      string `yaml:"mode" env:"BACKINV_EVENTBUS_MODE"` // direct | memory | jetstream
	URL       string `yaml:"url" env:"BACKINV_NATS_URL"`
	Stream    string `yaml:"stream" env:"BACKINV_NATS_STREAM"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

// APIConfig настраивает административный REST API
type APIConfig struct {
	Enabled   bool             `yaml:"enabled" env:"BACKINV_API_ENABLED"`
	Addr      string           `yaml:"addr" env:"BACKINV_API_ADDR"`
	JWTSecret string           `yaml:"jwt_secret" env:"BACKINV_API_JWT_SECRET"` // base64, >= 32 байт
	TokenTTL  time.Duration    `yaml:"token_ttl"`
	Operators []OperatorConfig `yaml:"operators"`
}

// OperatorConfig - учётная запись оператора REST API
type OperatorConfig struct {
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	Level        int    `yaml:"level"`
}

// TelemetryConfig включает экспорт трейсов OTLP
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"BACKINV_TELEMETRY_ENABLED"`
	ServiceName string `yaml:"service_name"`
}

// LogConfig настраивает логирование
type LogConfig struct {
	Dir          string `yaml:"dir" env:"BACKINV_LOG_DIR"`
	ConsoleLevel string `yaml:"console_level" env:"BACKINV_LOG_LEVEL"`
	FileLevel    string `yaml:"file_level"`
}

// DefaultMessages возвращает шаблоны сообщений по умолчанию
func DefaultMessages() Messages {
	return Messages{
		Prefix:          "§6[§aBackInv§6] ",
		Suffix:          "§7",
		ReJoin:          "Sorry come back again",
		LoadPlayer:      "Player {player} inventory is loaded from file {file}.",
		ErrorLoadPlayer: "Failed to save inventory for player {player} file {file} - Error- {e}",
		ItemPrefix:      "§7",
		ItemSuffix:      "§6",
		NoSavesFound:    "§cNo saved inventories found for player {player}",
		InvalidIndex:    "§cInvalid save index- {index}",
		SaveNotFound:    "§cSave not found- {save}",
		ErrorOccurred:   "§cAn error occurred while {action}",
		PlayerNotOnline: "§cPlayer {player} is not online",
		InvalidPlayer:   "§cInvalid player name- {player}",
		NoPermission:    "§cYou do not have permission to use this command",
	}
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Enabled:  true,
		Messages: DefaultMessages(),
		Storage: StorageConfig{
			Backend:        "file",
			Root:           filepath.Join("config", "backinv", "backups"),
			Extension:      "json",
			BadgerPath:     filepath.Join("config", "backinv", "snapshots.db"),
			RedisAddr:      "localhost:6379",
			RedisKeyPrefix: "backinv:snapshots:",
		},
		EventBus: EventBusConfig{
			Mode:      "direct",
			URL:       "nats://127.0.0.1:4222",
			Stream:    "BACKINV",
			Retention: 24,
			Capacity:  1024,
		},
		API: APIConfig{
			Addr:     ":8089",
			TokenTTL: 12 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "backinv",
		},
		Log: LogConfig{
			Dir:          "logs",
			ConsoleLevel: "info",
			FileLevel:    "debug",
		},
	}
}

// Load читает YAML документ поверх значений по умолчанию: отсутствующие ключи
// сохраняют значения по умолчанию. Затем применяются переменные окружения.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &snapshot.Error{Kind: snapshot.KindConfigLoad, Action: "reading " + path, Err: err}
	}
	return Parse(data)
}

// Parse разбирает документ конфигурации
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &snapshot.Error{Kind: snapshot.KindConfigLoad, Action: "parsing config", Err: err}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, &snapshot.Error{Kind: snapshot.KindConfigLoad, Action: "parsing env", Err: err}
	}
	return cfg, nil
}

// EnsureDefault создаёт документ со значениями по умолчанию, если его нет.
// Возвращает true, если файл был создан.
func EnsureDefault(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("ошибка проверки %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("не удалось создать директорию для %s: %w", path, err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("ошибка сериализации конфигурации: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	return true, nil
}

// LoadOrCreate создаёт документ по умолчанию при первом запуске и читает его.
// Если документ повреждён, возвращаются значения по умолчанию вместе с ошибкой.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = DefaultPath
	}

	created, err := EnsureDefault(path)
	if err != nil {
		return Default(), false, &snapshot.Error{Kind: snapshot.KindConfigLoad, Action: "creating " + path, Err: err}
	}

	cfg, err := Load(path)
	if err != nil {
		return Default(), created, err
	}
	return cfg, created, nil
}
