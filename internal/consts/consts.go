package consts

const (
	KELVIN          = 273.15       // Kelvin temperature (K)
	STEFANBOLTZMANN = 5.6703744e-8 // Stefan-Boltzmann constant (W/m^2/K^4)
	TBASE           = 100.0        // Conductor temperature base (deg C) for p.u. temperatures
	TMAX            = 80.0         // Rated conductor temperature (deg C)
	AIRDENSITY      = 1.2041       // Air density at sea level, 20 deg C (kg/m^3)
	AIRCONDUCTIVITY = 0.02587      // Thermal conductivity of air (W/m/K)
	AIRVISCOSITY    = 1.813e-5     // Dynamic viscosity of air (kg/m/s)
)
