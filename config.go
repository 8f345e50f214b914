package main

import (
	"fmt"
	"os"
	"time"

	"github.com/thiefmaster/librelay/apis"
	"github.com/thiefmaster/librelay/comm"
	"github.com/thiefmaster/librelay/logging"
	"gopkg.in/yaml.v2"
)

type serialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration `yaml:"read_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

type remoteConfig struct {
	Addr string
}

type appConfig struct {
	Serial serialConfig
	Log    logging.Config
	Remote remoteConfig
	Feed   apis.HTTPCredentials
}

func defaultConfig() appConfig {
	return appConfig{
		Serial: serialConfig{
			Device:      comm.DefaultDevice(),
			Baud:        comm.DefaultBaud,
			SettleDelay: comm.DefaultSettleDelay,
		},
		Log: logging.Config{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func (c *appConfig) load(path string) error {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not open config file: %w", err)
	}
	if err = yaml.UnmarshalStrict(yamlFile, c); err != nil {
		return fmt.Errorf("could not parse config file: %w", err)
	}
	return c.validate()
}

func (c *appConfig) validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("serial.device must not be empty")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout < 0 || c.Serial.SettleDelay < 0 {
		return fmt.Errorf("serial durations must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c *appConfig) portConfig() comm.PortConfig {
	return comm.PortConfig{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}
