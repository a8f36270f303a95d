package services

// sampleCSV is an excerpt of STATPOP2018G.csv.
const sampleCSV = "RELI,X_KOORD,Y_KOORD,E_KOORD,N_KOORD,B18BTOT,B18B11,B18B12,B18B13," +
	"B18B14,B18B15,B18B16,B18B21,B18B22,B18B23,B18B24,B18B25,B18B26,B18B27," +
	"B18B28,B18B29,B18B30,B18BMTOT,B18BWTOT,B18B41,B18B42,B18B43,B18B44," +
	"B18B45,B18B46,B18B51,B18B52,B18B53,B18B54,B18B55,B18B56\n" +
	"49221163,492200,116300,2492200,1116300,48,39,9,6,3,3,0,37,0,33,4,0,11," +
	"5,3,5,0,23,25,7,12,3,12,14,0,40,3,3,3,3,3\n" +
	"60002000,600000,200000,2600000,1200000,4,3,3,3,0,0,0,3,3,3,0,0,3,3,0," +
	"0,0,3,3,0,0,0,3,3,0,4,0,0,0,0,0\n"

// sampleLevel16 is the expected conversion of sampleCSV at level 16.
const sampleLevel16 = "S2CellId,TotalPopulation,FemalePopulation,MalePopulation\n" +
	"478c7d241,9,4,5\n" +
	"478c7d243,22,11,11\n" +
	"478c7d269,12,6,6\n" +
	"478c7d26b,5,3,2\n" +
	"478e39be5,4,3,1\n"
