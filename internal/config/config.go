// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDlepPort          = "854"
	DefaultHeartbeatInterval = 1
	DefaultPeerType          = "l2info router"
	DefaultDiscoveryAddress  = "224.0.0.117"
	DefaultAPIAddress        = "127.0.0.1"
	DefaultAPIPort           = "8854"
	DefaultLogPath           = "/var/log/l2info/"
	DefaultLogName           = "l2infod.log"
)

type Radio struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
}

type Discovery struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
}

type Dlep struct {
	Interface         string    `yaml:"interface"`
	PeerType          string    `yaml:"peer_type"`
	HeartbeatInterval uint16    `yaml:"heartbeat_interval"`
	Radios            []Radio   `yaml:"radios"`
	Discovery         Discovery `yaml:"discovery"`
}

// Heartbeat converts the wire heartbeat units (1000 ms each) to a duration.
func (d Dlep) Heartbeat() time.Duration {
	return time.Duration(d.HeartbeatInterval) * 1000 * time.Millisecond
}

type API struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
}

// Metrics is served only when Port is set.
type Metrics struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
}

type Log struct {
	Path  string `yaml:"path"`
	Name  string `yaml:"name"`
	Debug bool   `yaml:"debug"`
}

type Global struct {
	Dlep    Dlep    `yaml:"dlep"`
	API     API     `yaml:"api"`
	Metrics Metrics `yaml:"metrics"`
	Log     Log     `yaml:"log"`
}

type Config struct {
	Global Global `yaml:"global"`
}

func ReadConfigFile(configFile string) (Config, error) {
	c := new(Config)

	f, err := os.Open(configFile)
	if err != nil {
		return *c, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return *c, err
	}
	err = c.Validate()
	return *c, err
}

// Validate fills in defaults and rejects unusable settings.
func (c *Config) Validate() error {
	d := &c.Global.Dlep
	if d.Interface == "" {
		return errors.New("dlep: interface is required")
	}
	if d.PeerType == "" {
		d.PeerType = DefaultPeerType
	}
	if d.HeartbeatInterval == 0 {
		d.HeartbeatInterval = DefaultHeartbeatInterval
	}
	for i := range d.Radios {
		r := &d.Radios[i]
		if r.Address == "" {
			return fmt.Errorf("dlep: radio %d has no address", i)
		}
		if r.Port == "" {
			r.Port = DefaultDlepPort
		}
		if err := checkPort(r.Port); err != nil {
			return fmt.Errorf("dlep: radio %s: %w", r.Address, err)
		}
	}
	if d.Discovery.Enabled {
		if d.Discovery.Address == "" {
			d.Discovery.Address = DefaultDiscoveryAddress
		}
		if d.Discovery.Port == "" {
			d.Discovery.Port = DefaultDlepPort
		}
		if err := checkPort(d.Discovery.Port); err != nil {
			return fmt.Errorf("dlep: discovery: %w", err)
		}
	}
	if len(d.Radios) == 0 && !d.Discovery.Enabled {
		return errors.New("dlep: no radios configured and discovery disabled")
	}

	a := &c.Global.API
	if a.Address == "" {
		a.Address = DefaultAPIAddress
	}
	if a.Port == "" {
		a.Port = DefaultAPIPort
	}
	if err := checkPort(a.Port); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if m := c.Global.Metrics; m.Port != "" {
		if err := checkPort(m.Port); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	if c.Global.Log.Path == "" {
		c.Global.Log.Path = DefaultLogPath
	}
	if c.Global.Log.Name == "" {
		c.Global.Log.Name = DefaultLogName
	}
	return nil
}

func checkPort(port string) error {
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
