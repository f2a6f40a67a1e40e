package main

import (
	"context"
	"errors"
	"fmt"
	"worknight/internal/browser"
	"worknight/internal/workday"
	"worknight/lib/configstore"
	"worknight/lib/dateparse"
	"worknight/lib/retry"
)

// pipelineConfig carries everything a browser pipeline reads from the
// configuration store.
type pipelineConfig struct {
	homeURL      string
	parser       dateparse.Parser
	prefs        map[string]any
	otlpEndpoint string
}

func loadPipelineConfig() (pipelineConfig, error) {
	store, err := openStore()
	if err != nil {
		return pipelineConfig{}, err
	}

	homeURL, err := store.GetString("home_url")
	if err != nil || homeURL == "" {
		return pipelineConfig{}, errors.New("configuration is missing home_url; run `worknight config set home_url <url>`")
	}

	language, err := optionalString(store, "en", "account_preferences", "language")
	if err != nil {
		return pipelineConfig{}, err
	}

	prefs, err := store.Preferences("firefox")
	if err != nil {
		return pipelineConfig{}, err
	}

	otlpEndpoint, err := optionalString(store, "", "telemetry", "otlp", "http_endpoint")
	if err != nil {
		return pipelineConfig{}, err
	}

	return pipelineConfig{
		homeURL:      homeURL,
		parser:       dateparse.New(language),
		prefs:        prefs,
		otlpEndpoint: otlpEndpoint,
	}, nil
}

// optionalString reads a string leaf, treating a missing key as the
// fallback. Any other failure, including a present key of the wrong
// shape, is surfaced.
func optionalString(store *configstore.Store, fallback string, path ...string) (string, error) {
	value, err := store.GetString(path...)
	if errors.Is(err, configstore.ErrKeyNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// runSession runs fn against a vendor client on a fresh browser session.
// The driver is released on every exit path, including pipeline timeout,
// before the error is surfaced.
func runSession(ctx context.Context, cfg pipelineConfig, fn func(client workday.Client) error) error {
	session := browser.NewSession(browser.Options{
		Headless:    !flagNoHeadless,
		ProfilePath: flagProfilePath,
	})
	defer session.Close()

	if err := session.Start(ctx, cfg.homeURL, cfg.prefs); err != nil {
		return err
	}
	return fn(workday.NewClient(session, cfg.parser))
}

// openModule brings a started session to the named vendor module, with
// each navigation step wrapped in the retry policy.
func openModule(ctx context.Context, client workday.Client, policy retry.Policy, label string) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"ensure on vendor url", func() error { return client.EnsureOnVendorURL(ctx) }},
		{"dismiss session expiration", func() error { return client.DismissSessionExpiration(ctx) }},
		{"open " + label + " module", func() error { return client.OpenModule(ctx, label) }},
	}
	for _, step := range steps {
		if err := retry.Do(ctx, policy, step.run); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}
