// discovery.go
package dh_arm

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	genericservice "go.viam.com/rdk/services/generic"

	"dh_arm/kinematics"
)

var DHDiscoveryModel = resource.NewModel("devrel", "kinematics", "discovery")

// ModelFileSuffix marks model definition files in the module data directory.
const ModelFileSuffix = ".dh.json"

func init() {
	resource.RegisterService(
		discovery.API,
		DHDiscoveryModel,
		resource.Registration[discovery.Service, *DHDiscoveryConfig]{
			Constructor: newDHDiscovery,
		})
}

// DHDiscoveryConfig is the configuration for the discovery service
type DHDiscoveryConfig struct {
	// Strategy is copied into every discovered planner config when set.
	Strategy string `json:"strategy,omitempty"`
}

// Validate ensures the config is valid
func (cfg *DHDiscoveryConfig) Validate(path string) ([]string, []string, error) {
	if _, err := kinematics.ParseStrategy(cfg.Strategy); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

// dhDiscovery offers a planner config for every built-in preset and every saved model file
type dhDiscovery struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable
	logger   logging.Logger
	strategy string
}

func newDHDiscovery(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (discovery.Service, error) {
	cfg, err := resource.NativeConfig[*DHDiscoveryConfig](conf)
	if err != nil {
		return nil, err
	}

	return &dhDiscovery{
		Named:    conf.ResourceName().AsNamed(),
		logger:   logger,
		strategy: cfg.Strategy,
	}, nil
}

// DiscoverResources returns planner service configurations. extra may carry a "filter" string
// that keeps only sources whose name contains it.
func (dis *dhDiscovery) DiscoverResources(ctx context.Context, extra map[string]any) ([]resource.Config, error) {
	dis.logger.Info("Starting DH model discovery")

	filter, _ := extra["filter"].(string)

	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}
	files := findModelFiles(moduleDataDir, dis.logger)

	var allConfigs []resource.Config
	for _, name := range filterSources(kinematics.PresetNames(), filter) {
		select {
		case <-ctx.Done():
			dis.logger.Info("Discovery cancelled")
			return allConfigs, ctx.Err()
		default:
		}
		allConfigs = append(allConfigs, dis.plannerConfig("dh-"+resourceSuffix(name), "preset", name))
	}
	for _, file := range filterSources(files, filter) {
		select {
		case <-ctx.Done():
			dis.logger.Info("Discovery cancelled")
			return allConfigs, ctx.Err()
		default:
		}
		// confirm the file still describes a valid model before offering it
		if _, err := LoadModelFile(filepath.Join(moduleDataDir, file), dis.logger); err != nil {
			dis.logger.Debugf("Skipping %s: %v", file, err)
			continue
		}
		name := strings.TrimSuffix(file, ModelFileSuffix)
		allConfigs = append(allConfigs, dis.plannerConfig("dh-file-"+resourceSuffix(name), "model_file", file))
	}

	dis.logger.Infof("Discovered %d planner configurations", len(allConfigs))
	return allConfigs, nil
}

func (dis *dhDiscovery) plannerConfig(name, key, source string) resource.Config {
	attrs := map[string]interface{}{key: source}
	if dis.strategy != "" {
		attrs["strategy"] = dis.strategy
	}
	return resource.Config{
		Name:       name,
		API:        genericservice.API,
		Model:      DHPlannerModel,
		Attributes: attrs,
	}
}

// filterSources keeps the names containing filter, case-insensitively
func filterSources(names []string, filter string) []string {
	filter = strings.ToLower(strings.TrimSpace(filter))
	kept := []string{}
	for _, name := range names {
		if filter == "" || strings.Contains(strings.ToLower(name), filter) {
			kept = append(kept, name)
		}
	}
	return kept
}

// resourceSuffix turns a model name into a resource-name-safe suffix
// "Puma 560" -> "puma-560"
func resourceSuffix(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// findModelFiles lists model definition files in moduleDataDir
// Returns file names (not full paths), sorted
func findModelFiles(moduleDataDir string, logger logging.Logger) []string {
	entries, err := os.ReadDir(moduleDataDir)
	if err != nil {
		logger.Debugf("Cannot read module data directory %s: %v", moduleDataDir, err)
		return nil
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ModelFileSuffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	logger.Debugf("Found %d model files", len(files))
	return files
}
