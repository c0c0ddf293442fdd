package output

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter formats the plan as JSON.
type JSONFormatter struct{}

// planDocument is the marshal form of a plan entry.
type planDocument struct {
	Name            string `json:"name" yaml:"name"`
	TaskSequenceID  string `json:"taskSequenceId" yaml:"task_sequence_id"`
	Datastore       string `json:"datastore" yaml:"datastore"`
	Network         string `json:"network" yaml:"network"`
	Folder          string `json:"folder,omitempty" yaml:"folder,omitempty"`
	DiskSizeGB      int    `json:"diskSizeGB" yaml:"disk_size_gb"`
	MemoryGB        int    `json:"memoryGB" yaml:"memory_gb"`
	CPUCount        int    `json:"cpuCount" yaml:"cpu_count"`
	Sockets         int    `json:"sockets" yaml:"sockets"`
	CoresPerSocket  int    `json:"coresPerSocket" yaml:"cores_per_socket"`
	DisplayCount    int    `json:"displayCount" yaml:"display_count"`
	VideoMemKB      int    `json:"videoMemKB" yaml:"video_mem_kb"`
	HardwareVersion string `json:"hardwareVersion" yaml:"hardware_version"`
	GuestID         string `json:"guestId" yaml:"guest_id"`
	GPUProfile      string `json:"gpuProfile,omitempty" yaml:"gpu_profile,omitempty"`
}

// toDocuments converts plan entries to their marshal form.
func toDocuments(entries []PlanEntry) []planDocument {
	docs := make([]planDocument, 0, len(entries))
	for _, e := range entries {
		gpu := ""
		if e.Spec.HasGPUProfile() {
			gpu = e.Spec.GPUProfile
		}
		docs = append(docs, planDocument{
			Name:            e.Spec.Name,
			TaskSequenceID:  e.Spec.TaskSequenceID,
			Datastore:       e.Spec.Datastore,
			Network:         e.Spec.Network,
			Folder:          e.Spec.Folder,
			DiskSizeGB:      e.Spec.DiskSizeGB,
			MemoryGB:        e.Spec.MemoryGB,
			CPUCount:        e.Spec.CPUCount,
			Sockets:         e.Layout.Sockets,
			CoresPerSocket:  e.Layout.CoresPerSocket,
			DisplayCount:    e.Spec.DisplayCount,
			VideoMemKB:      e.Spec.VideoMemKB,
			HardwareVersion: e.Spec.HardwareVersion,
			GuestID:         e.Spec.GuestID,
			GPUProfile:      gpu,
		})
	}
	return docs
}

// FormatPlan formats the plan entries as a JSON array.
func (f *JSONFormatter) FormatPlan(entries []PlanEntry) (string, error) {
	data, err := json.MarshalIndent(toDocuments(entries), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
