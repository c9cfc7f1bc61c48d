package constants

const KBoltzmann float64 = 1.380649e-23 // [J/K]
const Avogadro float64 = 6.02214076e23  // [1/mol]

const HeliumMolarMass float64 = 0.004    // [kg/mol]
const YbOHMolarMass float64 = 0.190061   // [kg/mol]
const HeYbOHRadius float64 = 140e-12     // [m]
const DefaultDensity float64 = 1e21      // [m^-3]
const DefaultTemperature float64 = 4     // [K]
const DefaultBoxHalfWidth float64 = 0.05 // [m]

// DefaultCrossSection is the He-YbOH collision cross-section [m^2].
const DefaultCrossSection float64 = 4 * 4 * 3.141592653589793 * HeYbOHRadius * HeYbOHRadius

const Quantile95 = 1.96
