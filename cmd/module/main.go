package main

import (
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	genericservice "go.viam.com/rdk/services/generic"

	dhArm "dh_arm"
)

func main() {
	// ModularMain can take multiple APIModel arguments, if your module implements multiple models.
	module.ModularMain(
		resource.APIModel{API: genericservice.API, Model: dhArm.DHPlannerModel},
		resource.APIModel{API: discovery.API, Model: dhArm.DHDiscoveryModel},
	)
}
