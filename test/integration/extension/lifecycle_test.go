// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClipCC Contributors

//go:build integration

package extension_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/Menersar/clipcc-extension/internal/extension"
	"github.com/Menersar/clipcc-extension/internal/extension/luaext"
	"github.com/Menersar/clipcc-extension/pkg/errutil"
)

var _ = Describe("Extension lifecycle", func() {
	var (
		ctx       context.Context
		extDir    string
		markers   string
		mgr       *extension.Manager
		hostLoads []string
	)

	marker := func(id, name string) string {
		return filepath.Join(markers, id, name)
	}

	registerAll := func() {
		discovered, err := extension.Discover(extDir, slog.New(slog.DiscardHandler))
		Expect(err).NotTo(HaveOccurred())
		for _, d := range discovered {
			var inst extension.Instance
			if d.Manifest.API && d.Manifest.Lua != nil {
				inst, err = luaext.New(d.Manifest.ID, d.Dir, d.Manifest.Lua.Entry)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(mgr.Register(d.Manifest.Info(), inst)).To(Succeed())
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		extDir = GinkgoT().TempDir()
		markers = GinkgoT().TempDir()
		hostLoads = nil

		for _, id := range []string{"core-api", "vision"} {
			Expect(os.MkdirAll(filepath.Join(markers, id), 0o700)).To(Succeed())
		}

		writeExtension(extDir, "core-api", `
id: core-api
version: 1.4.0
api: true
lua:
  entry: main.lua
`, map[string]string{"main.lua": markerScript(filepath.Join(markers, "core-api"))})

		writeExtension(extDir, "vision", `
id: vision
version: 2.0.0
api: true
dependencies:
  core-api: "^1.0.0"
events:
  - project.*
lua:
  entry: main.lua
`, map[string]string{"main.lua": markerScript(filepath.Join(markers, "vision"))})

		writeExtension(extDir, "telemetry", `
id: telemetry
version: 0.3.0
dependencies:
  core-api: ">=1.2.0"
`, nil)

		mgr = extension.NewManager(
			extension.WithLogger(slog.New(slog.DiscardHandler)),
			extension.WithLoader(func(_ context.Context, id string) error {
				hostLoads = append(hostLoads, id)
				return nil
			}),
		)
		registerAll()
	})

	Describe("loading", func() {
		It("loads dependencies before the requested extension", func() {
			plan, err := mgr.Load(ctx, "vision")
			Expect(err).NotTo(HaveOccurred())

			Expect(plan).To(Equal([]extension.PlanEntry{
				{ID: "core-api", Mode: extension.ModePassive},
				{ID: "vision", Mode: extension.ModeInitiative},
			}))
			Expect(mgr.Registry().Status("core-api")).To(Equal(extension.StatusActiveImplicit))
			Expect(mgr.Registry().Status("vision")).To(Equal(extension.StatusActiveInitiative))

			Expect(marker("core-api", "init")).To(BeAnExistingFile())
			Expect(marker("vision", "init")).To(BeAnExistingFile())
		})

		It("invokes the host callback for extensions without an instance", func() {
			plan, err := mgr.Load(ctx, "telemetry")
			Expect(err).NotTo(HaveOccurred())

			Expect(plan).To(HaveLen(2))
			Expect(hostLoads).To(Equal([]string{"telemetry"}))
			Expect(marker("core-api", "init")).To(BeAnExistingFile())
		})

		It("promotes an implicitly loaded dependency on direct request", func() {
			_, err := mgr.Load(ctx, "vision")
			Expect(err).NotTo(HaveOccurred())

			_, err = mgr.Load(ctx, "core-api")
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.Registry().Status("core-api")).To(Equal(extension.StatusActiveInitiative))
		})
	})

	Describe("events", func() {
		It("delivers events to active extensions with matching subscriptions", func() {
			_, err := mgr.Load(ctx, "vision")
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.Emit(ctx, "project.loaded", map[string]any{"name": "demo"})).To(Succeed())

			Expect(marker("vision", "event_project.loaded")).To(BeAnExistingFile())
			// core-api declares no subscriptions.
			Expect(marker("core-api", "event_project.loaded")).NotTo(BeAnExistingFile())
		})

		It("does not deliver events to unloaded extensions", func() {
			Expect(mgr.Emit(ctx, "project.loaded", nil)).To(Succeed())
			Expect(marker("vision", "event_project.loaded")).NotTo(BeAnExistingFile())
		})
	})

	Describe("unloading", func() {
		It("unloads dependents before their dependencies", func() {
			_, err := mgr.Load(ctx, "vision")
			Expect(err).NotTo(HaveOccurred())

			order, err := mgr.Unload(ctx, "core-api")
			Expect(err).NotTo(HaveOccurred())

			Expect(order).To(Equal([]string{"vision", "core-api"}))
			Expect(marker("vision", "uninit")).To(BeAnExistingFile())
			Expect(marker("core-api", "uninit")).To(BeAnExistingFile())
			Expect(mgr.ActiveIDs()).To(BeEmpty())
		})

		It("cascades implicitly loaded dependencies", func() {
			_, err := mgr.Load(ctx, "vision")
			Expect(err).NotTo(HaveOccurred())

			order, err := mgr.Unload(ctx, "vision")
			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{"vision", "core-api"}))
		})

		It("tears down a shared implicit dependency after all of its dependents", func() {
			_, err := mgr.Load(ctx, "vision", "telemetry")
			Expect(err).NotTo(HaveOccurred())

			order, err := mgr.Unload(ctx, "vision")
			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{"vision", "telemetry", "core-api"}))
			Expect(mgr.ActiveIDs()).To(BeEmpty())
		})
	})

	Describe("resolution failures", func() {
		It("rejects unknown extensions with a structured code", func() {
			_, err := mgr.Load(ctx, "ghost")
			Expect(err).To(HaveOccurred())
			Expect(errutil.Code(err)).To(Equal("UNAVAILABLE_EXTENSION"))
		})

		It("rejects dependency version conflicts", func() {
			writeExtension(extDir, "future", `
id: future
version: 1.0.0
dependencies:
  core-api: "^2.0.0"
`, nil)
			registerAll()

			_, err := mgr.Load(ctx, "future")
			Expect(err).To(HaveOccurred())
			Expect(errutil.Code(err)).To(Equal("UNAVAILABLE_EXTENSION"))
		})

		It("rejects circular requirements", func() {
			writeExtension(extDir, "ouro-head", `
id: ouro-head
version: 1.0.0
dependencies:
  ouro-tail: "^1.0.0"
`, nil)
			writeExtension(extDir, "ouro-tail", `
id: ouro-tail
version: 1.0.0
dependencies:
  ouro-head: "^1.0.0"
`, nil)
			registerAll()

			_, err := mgr.Load(ctx, "ouro-head")
			Expect(err).To(HaveOccurred())
			Expect(errutil.Code(err)).To(Equal("CIRCULAR_REQUIREMENT"))
		})
	})
})
