// Package template resolves dotted template paths to locale-aware push texts.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-market-notify/internal/domain"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrTemplateNotFound means no path of a chain exists in the chosen bundle or the default one.
var ErrTemplateNotFound = errors.New("template not found")

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

type bundle map[string]domain.Message

// Resolver holds one flattened bundle per locale.
type Resolver struct {
	source        Source
	locales       []string
	defaultLocale string

	loadMu sync.Mutex

	mu      sync.RWMutex
	bundles map[string]bundle
	tags    []language.Tag
	names   []string
	matcher language.Matcher
}

// NewResolver serves locales from source. defaultLocale is always loaded and is the
// fallback for unknown locales and for paths missing from a locale's bundle.
func NewResolver(source Source, locales []string, defaultLocale string) *Resolver {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	ordered := []string{defaultLocale}
	for _, l := range locales {
		if l != "" && l != defaultLocale {
			ordered = append(ordered, l)
		}
	}
	return &Resolver{source: source, locales: ordered, defaultLocale: defaultLocale}
}

// LoadMessages (re)reads every configured bundle and swaps them in at once.
// A missing non-default bundle is logged and skipped; a missing default bundle is an error.
func (r *Resolver) LoadMessages(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.load(ctx)
}

func (r *Resolver) load(ctx context.Context) error {
	bundles := make(map[string]bundle, len(r.locales))
	var tags []language.Tag
	var names []string

	for _, locale := range r.locales {
		raw, err := r.source.Bundle(ctx, locale)
		if err != nil {
			if locale == r.defaultLocale {
				return fmt.Errorf("load default bundle: %w", err)
			}
			slog.Warn("template bundle skipped", "locale", locale, "err", err)
			continue
		}
		b, err := parseBundle(raw)
		if err != nil {
			return fmt.Errorf("parse bundle %s: %w", locale, err)
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("locale %q: %w", locale, err)
		}
		bundles[locale] = b
		tags = append(tags, tag)
		names = append(names, locale)
	}

	r.mu.Lock()
	r.bundles = bundles
	r.tags = tags
	r.names = names
	r.matcher = language.NewMatcher(tags)
	r.mu.Unlock()

	slog.Info("template bundles loaded", "locales", names)
	return nil
}

func (r *Resolver) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.bundles != nil
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	r.mu.RLock()
	loaded = r.bundles != nil
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.load(ctx)
}

// Resolve returns the first path of chain found for locale, interpolated with placeholders.
// Each path is tried in the best-matching bundle first and then in the default bundle.
func (r *Resolver) Resolve(ctx context.Context, locale string, chain []string, placeholders map[string]string) (domain.Message, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return domain.Message{}, err
	}

	r.mu.RLock()
	primary := r.bundles[r.match(locale)]
	fallback := r.bundles[r.defaultLocale]
	r.mu.RUnlock()

	for _, p := range chain {
		msg, ok := primary[p]
		if !ok {
			msg, ok = fallback[p]
		}
		if ok {
			return domain.Message{
				Title: Interpolate(msg.Title, placeholders),
				Body:  Interpolate(msg.Body, placeholders),
			}, nil
		}
	}
	return domain.Message{}, fmt.Errorf("%s: %w", strings.Join(chain, " -> "), ErrTemplateNotFound)
}

// Locales returns the loaded locales, default first.
func (r *Resolver) Locales() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// match must be called with mu held.
func (r *Resolver) match(locale string) string {
	if locale == "" || len(r.tags) == 0 {
		return r.defaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return r.defaultLocale
	}
	_, idx, conf := r.matcher.Match(tag)
	if conf == language.No {
		return r.defaultLocale
	}
	return r.names[idx]
}

// Interpolate replaces {name} tokens present in values. Unknown tokens are kept.
func Interpolate(s string, values map[string]string) string {
	if len(values) == 0 {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(tok string) string {
		if v, ok := values[tok[1:len(tok)-1]]; ok {
			return v
		}
		return tok
	})
}

func parseBundle(raw []byte) (bundle, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	out := bundle{}
	flatten("", tree, out)
	return out, nil
}

// flatten walks nested maps; a map holding a string title or body is a leaf.
func flatten(prefix string, node map[string]any, out bundle) {
	if msg, ok := leaf(node); ok && prefix != "" {
		out[prefix] = msg
		return
	}
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		child, ok := node[k].(map[string]any)
		if !ok {
			continue
		}
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		flatten(p, child, out)
	}
}

func leaf(node map[string]any) (domain.Message, bool) {
	title, tOK := node["title"].(string)
	body, bOK := node["body"].(string)
	if !tOK && !bOK {
		return domain.Message{}, false
	}
	return domain.Message{Title: title, Body: body}, true
}
