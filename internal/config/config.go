package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"vpnswap/internal/model"
)

const (
	DefaultPath                = "/jffs/addons/vpnswap/config.yaml"
	DefaultMaxFailoverAttempts = 3
	DefaultPingSampleCount     = 3
	DefaultPingTimeoutSec      = 5
	DefaultTestDestinationIP   = "8.8.8.8"
	DefaultMaxCandidateServers = 5
	DefaultWANInterface        = "eth0"
	DefaultSettleSec           = 10
	DefaultWANSampleCount      = 3
	DefaultSpeedtestBin        = "speedtest"
	DefaultSpeedtestTimeoutSec = 120
	DefaultFetchTimeoutSec     = 30
	DefaultSentinelLatencyMs   = 50.0
	DefaultSettingsBackend     = "nvram"

	envPrefix = "VPNSWAP"
)

// Config is loaded once per invocation and passed by value to every component.
type Config struct {
	InstanceID          string   `mapstructure:"instance_id" yaml:"instance_id"`
	SpeedThresholdMbps  float64  `mapstructure:"speed_threshold_mbps" yaml:"speed_threshold_mbps"`
	MaxFailoverAttempts int      `mapstructure:"max_failover_attempts" yaml:"max_failover_attempts"`
	PingSampleCount     int      `mapstructure:"ping_sample_count" yaml:"ping_sample_count"`
	PingTimeoutSec      int      `mapstructure:"ping_timeout_sec" yaml:"ping_timeout_sec"`
	TestDestinationIP   string   `mapstructure:"test_destination_ip" yaml:"test_destination_ip"`
	MaxCandidateServers int      `mapstructure:"max_candidate_servers" yaml:"max_candidate_servers"`
	EndpointDirectory   string   `mapstructure:"endpoint_directory_url" yaml:"endpoint_directory_url"`
	WANInterface        string   `mapstructure:"wan_interface" yaml:"wan_interface"`
	TunnelInterface     string   `mapstructure:"tunnel_interface" yaml:"tunnel_interface"`
	SettleSec           int      `mapstructure:"settle_sec" yaml:"settle_sec"`
	WANSampleCount      int      `mapstructure:"wan_sample_count" yaml:"wan_sample_count"`
	SpeedtestBin        string   `mapstructure:"speedtest_bin" yaml:"speedtest_bin"`
	SpeedtestTimeoutSec int      `mapstructure:"speedtest_timeout_sec" yaml:"speedtest_timeout_sec"`
	FetchTimeoutSec     int      `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	SentinelLatencyMs   float64  `mapstructure:"sentinel_latency_ms" yaml:"sentinel_latency_ms"`
	RestartCommand      []string `mapstructure:"restart_command" yaml:"restart_command"`
	SettingsBackend     string   `mapstructure:"settings_backend" yaml:"settings_backend"`
	SettingsPath        string   `mapstructure:"settings_path" yaml:"settings_path"`
	LogFile             string   `mapstructure:"log_file" yaml:"log_file"`
	LockFile            string   `mapstructure:"lock_file" yaml:"lock_file"`
	MetricsPath         string   `mapstructure:"metrics_path" yaml:"metrics_path"`
	STUNServer          string   `mapstructure:"stun_server" yaml:"stun_server"`
	VerifyEgress        bool     `mapstructure:"verify_egress" yaml:"verify_egress"`

	// Path is the file the config was read from; calibration writes back to it.
	Path string `mapstructure:"-" yaml:"-"`
}

// Load reads path (optional) with VPNSWAP_* environment overrides and applies defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: reading %s: %v", model.ErrConfig, path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", model.ErrConfig, err)
	}
	cfg.Path = path
	ApplyDefaults(&cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instance_id", "")
	v.SetDefault("speed_threshold_mbps", 0.0)
	v.SetDefault("max_failover_attempts", DefaultMaxFailoverAttempts)
	v.SetDefault("ping_sample_count", DefaultPingSampleCount)
	v.SetDefault("ping_timeout_sec", DefaultPingTimeoutSec)
	v.SetDefault("test_destination_ip", DefaultTestDestinationIP)
	v.SetDefault("max_candidate_servers", DefaultMaxCandidateServers)
	v.SetDefault("endpoint_directory_url", "")
	v.SetDefault("wan_interface", DefaultWANInterface)
	v.SetDefault("tunnel_interface", "")
	v.SetDefault("settle_sec", DefaultSettleSec)
	v.SetDefault("wan_sample_count", DefaultWANSampleCount)
	v.SetDefault("speedtest_bin", DefaultSpeedtestBin)
	v.SetDefault("speedtest_timeout_sec", DefaultSpeedtestTimeoutSec)
	v.SetDefault("fetch_timeout_sec", DefaultFetchTimeoutSec)
	v.SetDefault("sentinel_latency_ms", DefaultSentinelLatencyMs)
	v.SetDefault("restart_command", []string{})
	v.SetDefault("settings_backend", DefaultSettingsBackend)
	v.SetDefault("settings_path", "")
	v.SetDefault("log_file", "")
	v.SetDefault("lock_file", "")
	v.SetDefault("metrics_path", "")
	v.SetDefault("stun_server", "")
	v.SetDefault("verify_egress", false)
}

// ApplyDefaults fills in default values when empty. Instance-derived values
// (interface name, restart command, log and lock paths) need InstanceID set.
func ApplyDefaults(cfg *Config) {
	if cfg.MaxFailoverAttempts <= 0 {
		cfg.MaxFailoverAttempts = DefaultMaxFailoverAttempts
	}
	if cfg.PingSampleCount <= 0 {
		cfg.PingSampleCount = DefaultPingSampleCount
	}
	if cfg.PingTimeoutSec <= 0 {
		cfg.PingTimeoutSec = DefaultPingTimeoutSec
	}
	if cfg.TestDestinationIP == "" {
		cfg.TestDestinationIP = DefaultTestDestinationIP
	}
	if cfg.MaxCandidateServers <= 0 {
		cfg.MaxCandidateServers = DefaultMaxCandidateServers
	}
	if cfg.WANInterface == "" {
		cfg.WANInterface = DefaultWANInterface
	}
	if cfg.SettleSec < 0 {
		cfg.SettleSec = DefaultSettleSec
	}
	if cfg.WANSampleCount <= 0 {
		cfg.WANSampleCount = DefaultWANSampleCount
	}
	if cfg.SpeedtestBin == "" {
		cfg.SpeedtestBin = DefaultSpeedtestBin
	}
	if cfg.SpeedtestTimeoutSec <= 0 {
		cfg.SpeedtestTimeoutSec = DefaultSpeedtestTimeoutSec
	}
	if cfg.FetchTimeoutSec <= 0 {
		cfg.FetchTimeoutSec = DefaultFetchTimeoutSec
	}
	if cfg.SentinelLatencyMs <= 0 {
		cfg.SentinelLatencyMs = DefaultSentinelLatencyMs
	}
	if cfg.SettingsBackend == "" {
		cfg.SettingsBackend = DefaultSettingsBackend
	}

	if cfg.InstanceID == "" {
		return
	}
	prefix := cfg.SettingsPrefix()
	if cfg.TunnelInterface == "" {
		cfg.TunnelInterface = prefix
	}
	if len(cfg.RestartCommand) == 0 {
		cfg.RestartCommand = []string{"service", "restart_wgc " + cfg.InstanceID}
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "/tmp/vpnswap-" + prefix + ".log"
	}
	if cfg.LockFile == "" {
		cfg.LockFile = "/tmp/vpnswap-" + prefix + ".lock"
	}
	if cfg.SettingsPath == "" && cfg.SettingsBackend == "file" {
		cfg.SettingsPath = "/jffs/addons/vpnswap/" + prefix + ".settings.yaml"
	}
}

// SettingsPrefix is the settings-store key prefix of the tunnel instance (e.g. wgc1).
func (c Config) SettingsPrefix() string {
	return "wgc" + c.InstanceID
}

// Validate checks required fields. Every error wraps model.ErrConfig.
func Validate(cfg Config) error {
	var problems []string
	if cfg.InstanceID == "" {
		problems = append(problems, "instance_id is required")
	}
	if cfg.SpeedThresholdMbps <= 0 {
		problems = append(problems, "speed_threshold_mbps must be > 0")
	}
	if cfg.EndpointDirectory == "" {
		problems = append(problems, "endpoint_directory_url is required")
	}
	if cfg.SettingsBackend != "nvram" && cfg.SettingsBackend != "file" {
		problems = append(problems, fmt.Sprintf("settings_backend %q must be nvram or file", cfg.SettingsBackend))
	}
	if cfg.VerifyEgress && cfg.STUNServer == "" {
		problems = append(problems, "stun_server is required when verify_egress is set")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", model.ErrConfig, strings.Join(problems, "; "))
}
