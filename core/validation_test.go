package core

import (
	"errors"
	"testing"
)

func TestValidateCollectionConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CollectionConfig
		wantErr error
	}{
		{
			name:    "valid",
			cfg:     CollectionConfig{Name: "rag_files", Dimension: 384, Distance: DistanceCosine},
			wantErr: nil,
		},
		{
			name:    "empty name",
			cfg:     CollectionConfig{Name: "", Dimension: 384, Distance: DistanceCosine},
			wantErr: ErrInvalidCollection,
		},
		{
			name:    "name with slash",
			cfg:     CollectionConfig{Name: "a/b", Dimension: 384, Distance: DistanceCosine},
			wantErr: ErrInvalidCollection,
		},
		{
			name:    "zero dimension",
			cfg:     CollectionConfig{Name: "c", Dimension: 0, Distance: DistanceCosine},
			wantErr: ErrInvalidCollection,
		},
		{
			name:    "unknown distance",
			cfg:     CollectionConfig{Name: "c", Dimension: 3, Distance: "hamming"},
			wantErr: ErrInvalidCollection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionConfig(tt.cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateCollectionConfig() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCollectionConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePoint(t *testing.T) {
	tests := []struct {
		name    string
		point   *Point
		wantErr error
	}{
		{"valid", &Point{ID: 1, Vector: []float32{1, 0, 0}}, nil},
		{"nil point", nil, ErrInvalidPoint},
		{"short vector", &Point{ID: 1, Vector: []float32{1, 0}}, ErrDimensionMismatch},
		{"empty vector", &Point{ID: 1}, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePoint(tt.point, 3)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePoint() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePoint() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunkParams(t *testing.T) {
	tests := []struct {
		name      string
		maxLength int
		overlap   int
		wantErr   bool
	}{
		{"valid no overlap", 1000, 0, false},
		{"valid with overlap", 430, 30, false},
		{"zero max length", 0, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals max", 10, 10, true},
		{"overlap exceeds max", 10, 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunkParams(tt.maxLength, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateChunkParams(%d, %d) error = %v, wantErr %v", tt.maxLength, tt.overlap, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidChunkParams) {
				t.Errorf("error should wrap ErrInvalidChunkParams, got %v", err)
			}
		})
	}
}

func TestValidateVector(t *testing.T) {
	if err := ValidateVector([]float32{1, 2, 3}, 3); err != nil {
		t.Errorf("ValidateVector() error = %v, want nil", err)
	}
	if err := ValidateVector([]float32{1, 2}, 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("ValidateVector() error = %v, want ErrDimensionMismatch", err)
	}
}
