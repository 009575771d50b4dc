package blob_test

import (
	"context"
	"encoding/json"
	"fmt"
	"relic-services/blob"
	"relic-services/types"
	"testing"
)

// memStore collects puts in memory so metadata assembly can be tested
// without postgres
type memStore struct {
	puts map[string][]byte
	seq  int
}

func newMemStore() *memStore {
	return &memStore{puts: map[string][]byte{}}
}

func (s *memStore) Put(ctx context.Context, fileName string, content []byte, public bool) (string, error) {
	s.seq++
	locator := fmt.Sprintf("blob://mem-%d", s.seq)
	s.puts[locator] = content
	return locator, nil
}

func (s *memStore) Get(ctx context.Context, locator string) (*types.Blob, error) {
	content, ok := s.puts[locator]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return &types.Blob{File: content}, nil
}

func TestPrepareMetadata(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	creator, err := types.AddressFromHex("0x5e6f3edc2ab1a894a169b1c2a3f43c64d65a2d6e")
	if err != nil {
		t.Fatal(err)
	}

	locator, err := blob.PrepareMetadata(ctx, store, creator, "Skyfall", "a relic", "image", "skyfall.png", []byte("png-bytes"), nil)
	if err != nil {
		t.Fatal(err)
	}

	doc, err := store.Get(ctx, locator)
	if err != nil {
		t.Fatal(err)
	}
	metadata := &types.AssetMetadata{}
	err = json.Unmarshal(doc.File, metadata)
	if err != nil {
		t.Fatal(err)
	}

	if metadata.Name != "Skyfall" || metadata.Creator != creator {
		t.Fatalf("metadata = %+v", metadata)
	}
	if metadata.MainURL == "" || metadata.Image != metadata.MainURL {
		t.Fatalf("image should point at the main file, got %+v", metadata)
	}
	if metadata.ThumbnailURL.Valid {
		t.Fatal("no thumbnail was uploaded")
	}
}

func TestPrepareMetadataVideoUsesThumbnail(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	creator, err := types.AddressFromHex("0x5e6f3edc2ab1a894a169b1c2a3f43c64d65a2d6e")
	if err != nil {
		t.Fatal(err)
	}

	locator, err := blob.PrepareMetadata(ctx, store, creator, "Clip", "", "video", "clip.mp4", []byte("mp4-bytes"), []byte("jpg-bytes"))
	if err != nil {
		t.Fatal(err)
	}

	doc, err := store.Get(ctx, locator)
	if err != nil {
		t.Fatal(err)
	}
	metadata := &types.AssetMetadata{}
	err = json.Unmarshal(doc.File, metadata)
	if err != nil {
		t.Fatal(err)
	}

	if !metadata.ThumbnailURL.Valid {
		t.Fatal("thumbnail locator missing")
	}
	if metadata.Image != metadata.ThumbnailURL.String {
		t.Fatal("video image should be the thumbnail")
	}
	if metadata.Image == metadata.MainURL {
		t.Fatal("image must not be the raw video")
	}
}
