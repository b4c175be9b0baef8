package main

import (
	"context"
	"errors"

	"github.com/iainlane/fiblight/internal/fibaro"
	"github.com/sirupsen/logrus"
)

type Discoverer interface {
	Discover(ctx context.Context) ([]fibaro.Light, error)
}

type RealDiscoverer struct {
	Client *fibaro.Client
}

type discoveryTimeoutError struct{}

func (te *discoveryTimeoutError) Error() string {
	return "timed out while discovering devices"
}

func (te *discoveryTimeoutError) ExitCode() int {
	return 1
}

func (rd *RealDiscoverer) Discover(ctx context.Context) ([]fibaro.Light, error) {
	info, err := rd.Client.Info(ctx)
	if err != nil {
		return nil, discoveryError(err)
	}
	logrus.WithFields(logrus.Fields{
		"controller": rd.Client.BaseURL(),
		"serial":     info.SerialNumber,
		"version":    info.SoftVersion,
	}).Debug("Connected to controller")

	lights, err := fibaro.Lights(ctx, rd.Client)
	if err != nil {
		return nil, discoveryError(err)
	}
	return lights, nil
}

func discoveryError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &discoveryTimeoutError{}
	}
	return err
}
