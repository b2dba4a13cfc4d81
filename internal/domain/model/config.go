package model

import (
	"errors"
	"fmt"
	"time"
)

type DweloConfig struct {
	Token          string        `yaml:"token" json:"-"`
	GatewayID      string        `yaml:"gateway_id" json:"gateway_id"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	ApplicationID  string        `yaml:"application_id" json:"application_id,omitempty"`
	RequestDelay   time.Duration `yaml:"request_delay" json:"request_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

type ConfirmConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

type LockConfig struct {
	// AutoLock re-locks an unlocked lock after this long. Zero disables it.
	AutoLock time.Duration `yaml:"auto_lock" json:"auto_lock"`
}

type HomeKitConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Name        string `yaml:"name" json:"name"`
	Pin         string `yaml:"pin" json:"-"`
	Addr        string `yaml:"addr" json:"addr"`
	StoragePath string `yaml:"storage_path" json:"storage_path"`
}

type HueConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	LocalIP    string `yaml:"local_ip" json:"local_ip"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Broker      string `yaml:"broker" json:"broker"`
	ClientID    string `yaml:"client_id" json:"client_id"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix"`
	Username    string `yaml:"username" json:"-"`
	Password    string `yaml:"password" json:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type Config struct {
	Dwelo           DweloConfig   `yaml:"dwelo" json:"dwelo"`
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
	StatusCacheTTL  time.Duration `yaml:"status_cache_ttl" json:"status_cache_ttl"`
	Confirm         ConfirmConfig `yaml:"confirm" json:"confirm"`
	Debounce        time.Duration `yaml:"debounce" json:"debounce"`
	Lock            LockConfig    `yaml:"lock" json:"lock"`
	StatePath       string        `yaml:"state_path" json:"state_path"`
	HomeKit         HomeKitConfig `yaml:"homekit" json:"homekit"`
	Hue             HueConfig     `yaml:"hue" json:"hue"`
	MQTT            MQTTConfig    `yaml:"mqtt" json:"mqtt"`
	Log             LogConfig     `yaml:"log" json:"log"`
}

const DefaultBaseURL = "https://api.dwelo.com"

// MinRequestDelay caps the Dwelo API at ten requests per second.
const MinRequestDelay = 100 * time.Millisecond

func (c *Config) SetDefaults() {
	if c.Dwelo.BaseURL == "" {
		c.Dwelo.BaseURL = DefaultBaseURL
	}
	if c.Dwelo.RequestDelay == 0 {
		c.Dwelo.RequestDelay = MinRequestDelay
	}
	if c.Dwelo.RequestTimeout == 0 {
		c.Dwelo.RequestTimeout = 15 * time.Second
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 30 * time.Second
	}
	if c.StatusCacheTTL == 0 {
		c.StatusCacheTTL = 2 * time.Second
	}
	if c.Confirm.Interval == 0 {
		c.Confirm.Interval = time.Second
	}
	if c.Confirm.Timeout == 0 {
		c.Confirm.Timeout = 30 * time.Second
	}
	if c.Debounce == 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.StatePath == "" {
		c.StatePath = "./dwelo-state.json"
	}
	if c.HomeKit.Name == "" {
		c.HomeKit.Name = "Dwelo Bridge"
	}
	if c.HomeKit.Pin == "" {
		c.HomeKit.Pin = "00102003"
	}
	if c.HomeKit.StoragePath == "" {
		c.HomeKit.StoragePath = "./hap"
	}
	if c.Hue.ListenAddr == "" {
		c.Hue.ListenAddr = ":80"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "dwelo-bridge"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "dwelo"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Dwelo.Token == "" {
		errs = append(errs, errors.New("dwelo.token is required"))
	}
	if c.Dwelo.GatewayID == "" {
		errs = append(errs, errors.New("dwelo.gateway_id is required"))
	}
	if c.Dwelo.RequestDelay < MinRequestDelay {
		errs = append(errs, fmt.Errorf("dwelo.request_delay must be at least %s", MinRequestDelay))
	}
	for name, d := range map[string]time.Duration{
		"dwelo.request_timeout": c.Dwelo.RequestTimeout,
		"status_cache_ttl":      c.StatusCacheTTL,
		"confirm.interval":      c.Confirm.Interval,
		"confirm.timeout":       c.Confirm.Timeout,
		"debounce":              c.Debounce,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.RefreshInterval < time.Second {
		errs = append(errs, errors.New("refresh_interval must be at least 1s"))
	}
	if c.Lock.AutoLock < 0 {
		errs = append(errs, errors.New("lock.auto_lock must not be negative"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	return errors.Join(errs...)
}
