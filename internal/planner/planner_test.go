// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/mirrorwell/mirrorwell/internal/catalog"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// digest fabricates a distinct well-formed digest from a single seed char.
func digest(seed byte) string {
	return strings.Repeat(string(seed), 64)
}

func item(seed byte, path string, size int64) models.MediaItem {
	return models.MediaItem{Digest: digest(seed), Title: path, Path: path, Size: size, Type: models.MediaVideo}
}

func snap(deviceID string, items ...models.MediaItem) *catalog.Snapshot {
	return catalog.NewSnapshot(deviceID, 1, time.Now(), items)
}

func TestDiffComputesMissingItems(t *testing.T) {
	source := snap("nas1",
		item('a', "/media/a.mkv", 100),
		item('b', "/media/b.mkv", 200),
		item('c', "/media/c.mkv", 300),
	)
	target := snap("pc1", item('b', "/other/name.mkv", 200))

	plan := Diff(source, target)
	if len(plan.Items) != 2 {
		t.Fatalf("plan has %d items, want 2", len(plan.Items))
	}
	if plan.Items[0].Digest != digest('a') || plan.Items[1].Digest != digest('c') {
		t.Errorf("plan order = %s, %s", plan.Items[0].Path, plan.Items[1].Path)
	}
	if plan.Bytes != 400 {
		t.Errorf("plan bytes = %d, want 400", plan.Bytes)
	}
	if plan.SourceID != "nas1" || plan.TargetID != "pc1" {
		t.Errorf("plan endpoints = %s -> %s", plan.SourceID, plan.TargetID)
	}
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	items := []models.MediaItem{item('a', "/m/a.mkv", 1), item('b', "/m/b.mkv", 2)}
	source := catalog.NewSnapshot("nas1", 1, time.Now(), items)
	target := catalog.NewSnapshot("pc1", 1, time.Now(), items)

	plan := Diff(source, target)
	if !plan.Empty() {
		t.Errorf("plan not empty: %d items", len(plan.Items))
	}
	if plan.Bytes != 0 {
		t.Errorf("plan bytes = %d", plan.Bytes)
	}
}

func TestDiffRenamedFileIsNotADifference(t *testing.T) {
	source := snap("nas1", item('a', "/media/original-name.mkv", 50))
	target := snap("pc1", item('a', "/backup/renamed.mkv", 50))

	if plan := Diff(source, target); !plan.Empty() {
		t.Error("byte-identical renamed file planned for transfer")
	}
}

func TestDiffEmptyTargetCopiesEverything(t *testing.T) {
	source := snap("nas1", item('a', "/m/a.mkv", 10), item('b', "/m/b.mkv", 20))
	target := snap("pc1")

	plan := Diff(source, target)
	if len(plan.Items) != source.Len() {
		t.Errorf("plan has %d items, want %d", len(plan.Items), source.Len())
	}
}

func TestDiffEmptySourceIsEmptyPlan(t *testing.T) {
	source := snap("nas1")
	target := snap("pc1", item('a', "/m/a.mkv", 10))

	if plan := Diff(source, target); !plan.Empty() {
		t.Error("empty source produced a non-empty plan")
	}
}

func TestDiffIsDeterministic(t *testing.T) {
	source := snap("nas1",
		item('c', "/m/c.mkv", 3),
		item('a', "/m/a.mkv", 1),
		item('b', "/m/b.mkv", 2),
	)
	target := snap("pc1")

	first := Diff(source, target)
	for i := 0; i < 5; i++ {
		again := Diff(source, target)
		if len(again.Items) != len(first.Items) {
			t.Fatal("plan size varies between runs")
		}
		for j := range first.Items {
			if again.Items[j].Digest != first.Items[j].Digest {
				t.Fatal("plan order varies between runs")
			}
		}
	}
	// Snapshot order is by path, so the plan follows it.
	if first.Items[0].Path != "/m/a.mkv" {
		t.Errorf("first planned item = %s", first.Items[0].Path)
	}
}
